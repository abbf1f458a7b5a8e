package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vaultsig/multisig-go/pkg/types"
	"github.com/vaultsig/multisig-go/pkg/wallet"
)

// statusForError maps engine sentinels to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, wallet.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrNotOwner),
		errors.Is(err, wallet.ErrSignerNotOwner),
		errors.Is(err, wallet.ErrNotAuthority):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrSignatureAlreadyUsed),
		errors.Is(err, wallet.ErrTransactionAlreadyExecuted),
		errors.Is(err, wallet.ErrTransactionAlreadyApproved),
		errors.Is(err, wallet.ErrOwnerAlreadyExists),
		errors.Is(err, wallet.ErrNotEnoughApprovals):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrInvalidSignature),
		errors.Is(err, wallet.ErrInvalidPrincipal),
		errors.Is(err, wallet.ErrInvalidValue),
		errors.Is(err, wallet.ErrInvalidThreshold),
		errors.Is(err, wallet.ErrCannotRemoveBelowThreshold):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrExecutionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) walletError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Internal wallet error", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// parseAddress validates and parses a hex address request field.
func parseAddress(w http.ResponseWriter, name, value string) (common.Address, bool) {
	if !common.IsHexAddress(value) {
		http.Error(w, fmt.Sprintf("%s must be a hex address", name), http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}

// handleSubmit handles POST /wallet/submit
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.submitLimit.Allow() {
		http.Error(w, "Too many submissions", http.StatusTooManyRequests)
		return
	}

	var req types.SubmitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	to, ok := parseAddress(w, "to", req.To)
	if !ok {
		return
	}
	if len(req.Signature) == 0 {
		http.Error(w, "signature is required", http.StatusBadRequest)
		return
	}

	index, signer, err := s.wallet.SubmitTransaction(to, (*big.Int)(req.Value), req.Payload, req.Description, req.Nonce, req.Signature)
	if err != nil {
		s.walletError(w, err)
		return
	}

	writeJSON(w, types.SubmitTransactionResponse{Index: index, Signer: signer.Hex()})
}

// handleApprove handles POST /wallet/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.ApproveTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := s.wallet.ApproveTransaction(req.Index, caller); err != nil {
		s.walletError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleExecute handles POST /wallet/execute
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.ExecuteTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := s.wallet.ExecuteTransaction(r.Context(), req.Index, caller); err != nil {
		s.walletError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleDigest handles POST /wallet/digest, the exposed digest-computation
// entry point for offline signing.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.DigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	to, ok := parseAddress(w, "to", req.To)
	if !ok {
		return
	}

	d, err := s.wallet.TransactionDigest(to, (*big.Int)(req.Value), req.Payload, req.Description, req.Nonce)
	if err != nil {
		s.walletError(w, err)
		return
	}

	writeJSON(w, types.DigestResponse{Digest: d.Hex()})
}

// handleAddOwner handles POST /governance/owners/add
func (s *Server) handleAddOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.GovernanceOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(w, "caller", req.Caller)
	if !ok {
		return
	}
	owner, ok := parseAddress(w, "owner", req.Owner)
	if !ok {
		return
	}

	if err := s.wallet.AddOwner(caller, owner); err != nil {
		s.walletError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleRemoveOwner handles POST /governance/owners/remove
func (s *Server) handleRemoveOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.GovernanceOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(w, "caller", req.Caller)
	if !ok {
		return
	}
	owner, ok := parseAddress(w, "owner", req.Owner)
	if !ok {
		return
	}

	if err := s.wallet.RemoveOwner(caller, owner); err != nil {
		s.walletError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleChangeRequired handles POST /governance/required
func (s *Server) handleChangeRequired(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.GovernanceRequiredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := s.wallet.ChangeRequired(caller, req.Required); err != nil {
		s.walletError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleTransactionCount handles GET /wallet/transactions/count
func (s *Server) handleTransactionCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]uint64{"count": s.wallet.TransactionCount()})
}

// handleGetTransaction handles GET /wallet/transactions?index=N
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	if err != nil {
		http.Error(w, "index must be a non-negative integer", http.StatusBadRequest)
		return
	}

	record, err := s.wallet.GetTransaction(index)
	if err != nil {
		s.walletError(w, err)
		return
	}

	writeJSON(w, record)
}

// handleGetOwners handles GET /wallet/owners
func (s *Server) handleGetOwners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	owners := s.wallet.Owners()
	hexOwners := make([]string, len(owners))
	for i, o := range owners {
		hexOwners[i] = o.Hex()
	}

	writeJSON(w, types.RegistryState{
		Owners:    hexOwners,
		Required:  s.wallet.Required(),
		Authority: s.wallet.Authority().Hex(),
	})
}

// handleGetApproval handles GET /wallet/approvals?index=N&owner=0x..
func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	if err != nil {
		http.Error(w, "index must be a non-negative integer", http.StatusBadRequest)
		return
	}
	owner, ok := parseAddress(w, "owner", r.URL.Query().Get("owner"))
	if !ok {
		return
	}

	approved, err := s.wallet.HasApproved(index, owner)
	if err != nil {
		s.walletError(w, err)
		return
	}

	writeJSON(w, map[string]bool{"approved": approved})
}

// handleLedgerRoot handles GET /wallet/ledger/root
func (s *Server) handleLedgerRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	root, count, err := s.wallet.LedgerRoot()
	if err != nil {
		s.walletError(w, err)
		return
	}

	writeJSON(w, types.LedgerRootResponse{Root: root.Hex(), Count: count})
}

// handleLedgerProof handles GET /wallet/ledger/proof?index=N
func (s *Server) handleLedgerProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	if err != nil {
		http.Error(w, "index must be a non-negative integer", http.StatusBadRequest)
		return
	}

	proof, root, err := s.wallet.LedgerProof(index)
	if err != nil {
		s.walletError(w, err)
		return
	}

	siblings := make([]string, len(proof.Siblings))
	for i, sibling := range proof.Siblings {
		siblings[i] = sibling.Hex()
	}
	writeJSON(w, types.LedgerProofResponse{
		Root:     root.Hex(),
		Index:    index,
		Leaf:     proof.Leaf.Hex(),
		Siblings: siblings,
	})
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	for _, check := range s.healthChecks {
		if err := check(); err != nil {
			http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
			return
		}
	}

	writeJSON(w, map[string]string{"status": "ok"})
}
