package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vaultsig/multisig-go/pkg/wallet"
)

/*
Server exposes the wallet engine over HTTP.

Write endpoints (JSON bodies, see pkg/types for shapes):
  POST /wallet/submit             - submit a signed transaction proposal
  POST /wallet/approve            - record an owner approval
  POST /wallet/execute            - execute a qualifying entry
  POST /governance/owners/add     - add an owner (authority only)
  POST /governance/owners/remove  - remove an owner (authority only)
  POST /governance/required       - change the approval threshold (authority only)

Read endpoints:
  GET  /wallet/transactions/count - number of ledger entries
  GET  /wallet/transactions?index=N - entry projection (fields, executed, approvals)
  GET  /wallet/owners             - owner list, threshold and authority
  GET  /wallet/approvals?index=N&owner=0x.. - per-owner approval lookup
  POST /wallet/digest             - compute the exact digest to sign for an intent
  GET  /wallet/ledger/root        - merkle root over all transaction digests
  GET  /wallet/ledger/proof?index=N - inclusion proof for one entry
  GET  /healthz                   - engine and persistence health

Caller identities in request bodies are taken at face value: authenticating
the transport (mTLS, session tokens, signed requests) is the integrator's
concern. The engine's own authorization - signature recovery on submit,
owner and authority checks everywhere - is what this service guarantees.

Submissions are rate limited to shield the signature-recovery path from
request floods.
*/

// submitRatePerSecond bounds sustained submissions; short bursts are allowed.
const (
	submitRatePerSecond = 20
	submitBurst         = 40
)

// Server handles HTTP requests for the wallet
type Server struct {
	wallet       *wallet.Wallet
	logger       *zap.Logger
	httpServer   *http.Server
	submitLimit  *rate.Limiter
	healthChecks []func() error
}

// NewServer creates a new server instance. Health check functions (e.g. the
// persistence layer's HealthCheck) are probed by GET /healthz.
func NewServer(w *wallet.Wallet, port int, logger *zap.Logger, healthChecks ...func() error) *Server {
	s := &Server{
		wallet:       w,
		logger:       logger,
		submitLimit:  rate.NewLimiter(rate.Limit(submitRatePerSecond), submitBurst),
		healthChecks: healthChecks,
	}

	mux := http.NewServeMux()

	// Wallet endpoints
	mux.HandleFunc("/wallet/submit", s.handleSubmit)
	mux.HandleFunc("/wallet/approve", s.handleApprove)
	mux.HandleFunc("/wallet/execute", s.handleExecute)
	mux.HandleFunc("/wallet/digest", s.handleDigest)

	// Governance endpoints
	mux.HandleFunc("/governance/owners/add", s.handleAddOwner)
	mux.HandleFunc("/governance/owners/remove", s.handleRemoveOwner)
	mux.HandleFunc("/governance/required", s.handleChangeRequired)

	// Read endpoints
	mux.HandleFunc("/wallet/transactions/count", s.handleTransactionCount)
	mux.HandleFunc("/wallet/transactions", s.handleGetTransaction)
	mux.HandleFunc("/wallet/owners", s.handleGetOwners)
	mux.HandleFunc("/wallet/approvals", s.handleGetApproval)
	mux.HandleFunc("/wallet/ledger/root", s.handleLedgerRoot)
	mux.HandleFunc("/wallet/ledger/proof", s.handleLedgerProof)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
