package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vaultsig/multisig-go/pkg/digest"
	"github.com/vaultsig/multisig-go/pkg/effect"
	"github.com/vaultsig/multisig-go/pkg/merkle"
	"github.com/vaultsig/multisig-go/pkg/persistence"
	"github.com/vaultsig/multisig-go/pkg/signer"
	"github.com/vaultsig/multisig-go/pkg/types"
)

/*
Wallet is the multi-party transaction authorization engine.

A transaction enters the ledger through SubmitTransaction with an off-chain
collected signature over the EIP-712 digest of its intent fields. The
recovered signer must be a current owner and the signature blob must never
have been used before; submission records the signer's approval, so an entry
never exists with zero approvals. Further owners add approvals with
ApproveTransaction, and once the approval count reaches the registry's
current threshold any owner may call ExecuteTransaction, which performs the
configured external effect exactly once.

Entry lifecycle: Proposed (fewer than required approvals) -> Approved
(enough approvals, not executed) -> Executed (terminal). There is no
cancellation or expiry; a pending entry stays pending until executed or made
permanently unexecutable by governance changes.

All mutating operations are serialized under one mutex, so no caller ever
observes a partially updated registry, ledger entry, or consumed-signature
set. The external effect runs inside the execute critical section: the entry
is marked executed before the effect is invoked, and if the effect fails the
mark is reverted before the lock is released, so the intermediate state is
never observable. Effects and event sinks must not call back into the wallet.

When a persistence layer is configured, state is loaded at construction and
written through before each in-memory mutation commits: a storage failure
rejects the operation and leaves the wallet unchanged. The one exception is
the execute path, where the effect has already happened by the time the
record is persisted; a storage failure there is surfaced but the executed
flag stands, since the side effect cannot be unwound.
*/

// Config holds wallet construction parameters.
type Config struct {
	// ChainID and InstanceAddress form the signature domain: signatures are
	// bound to this deployment and cannot be replayed against another chain,
	// instance, or protocol version.
	ChainID         uint64
	InstanceAddress common.Address

	// Owners and Required seed the registry on first run. When a persistence
	// layer already holds registry state, the persisted state wins.
	Owners   []common.Address
	Required int

	// Authority is the governance principal allowed to mutate the owner set
	// and threshold. It is deliberately distinct from ownership; see the
	// governance method docs.
	Authority common.Address

	// Effect performs the external side action on execution. Defaults to
	// effect.Noop.
	Effect effect.Effect

	// Persistence makes owner set, ledger and consumed-signature set durable
	// across restarts. Optional; without it the wallet is memory-only.
	Persistence persistence.IWalletPersistence

	// Sink receives lifecycle events. Defaults to a zap-backed LogSink.
	Sink EventSink

	Logger *zap.Logger
}

type entry struct {
	to          common.Address
	value       *big.Int
	payload     []byte
	description string
	nonce       uint64

	digest common.Hash

	executed bool
	// approved is the membership set; approvalOrder preserves insertion
	// order for stable projections. len(approvalOrder) is the approval count.
	approved      map[common.Address]struct{}
	approvalOrder []common.Address
}

// Wallet is the authorization engine. See the package-level description for
// its contract.
type Wallet struct {
	mu sync.RWMutex

	domain    digest.Domain
	registry  *Registry
	authority common.Address

	entries  []*entry
	usedSigs map[common.Hash]struct{}

	effect effect.Effect
	store  persistence.IWalletPersistence
	sink   EventSink
	logger *zap.Logger
}

// NewWallet constructs a wallet, restoring persisted state when a
// persistence layer is configured and holds prior state.
func NewWallet(cfg Config) (*Wallet, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	eff := cfg.Effect
	if eff == nil {
		eff = effect.Noop{}
	}

	if cfg.Authority == (common.Address{}) {
		return nil, errors.Wrap(ErrInvalidPrincipal, "zero governance authority")
	}

	w := &Wallet{
		domain: digest.Domain{
			ChainID:           cfg.ChainID,
			VerifyingInstance: cfg.InstanceAddress,
		},
		authority: cfg.Authority,
		usedSigs:  make(map[common.Hash]struct{}),
		effect:    eff,
		store:     cfg.Persistence,
		logger:    log,
	}

	if cfg.Sink != nil {
		w.sink = cfg.Sink
	} else {
		w.sink = NewLogSink(log)
	}

	if err := w.restoreOrInitRegistry(cfg); err != nil {
		return nil, err
	}
	if err := w.restoreLedger(); err != nil {
		return nil, err
	}
	if err := w.restoreConsumedSignatures(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Wallet) restoreOrInitRegistry(cfg Config) error {
	if w.store != nil {
		state, err := w.store.LoadRegistryState()
		if err != nil {
			return errors.Wrap(err, "loading registry state")
		}
		if state != nil {
			owners := make([]common.Address, 0, len(state.Owners))
			for _, hex := range state.Owners {
				owners = append(owners, common.HexToAddress(hex))
			}
			registry, err := NewRegistry(owners, state.Required)
			if err != nil {
				return errors.Wrap(err, "persisted registry state is invalid")
			}
			w.registry = registry
			w.authority = common.HexToAddress(state.Authority)
			w.logger.Sugar().Infow("Restored registry state",
				"owners", len(state.Owners), "required", state.Required)
			return nil
		}
	}

	registry, err := NewRegistry(cfg.Owners, cfg.Required)
	if err != nil {
		return err
	}
	w.registry = registry

	if w.store != nil {
		if err := w.store.SaveRegistryState(w.registryState()); err != nil {
			return errors.Wrap(err, "persisting initial registry state")
		}
	}
	return nil
}

func (w *Wallet) restoreLedger() error {
	if w.store == nil {
		return nil
	}

	records, err := w.store.ListTransactions()
	if err != nil {
		return errors.Wrap(err, "loading transaction ledger")
	}

	for _, record := range records {
		if record.Index != uint64(len(w.entries)) {
			return errors.Errorf("ledger gap: expected index %d, found %d", len(w.entries), record.Index)
		}

		e := &entry{
			to:          common.HexToAddress(record.To),
			value:       new(big.Int),
			payload:     append([]byte(nil), record.Payload...),
			description: record.Description,
			nonce:       record.Nonce,
			executed:    record.Executed,
			approved:    make(map[common.Address]struct{}, len(record.Approvals)),
		}
		if record.Value != nil {
			e.value.Set(record.Value)
		}
		for _, hex := range record.Approvals {
			addr := common.HexToAddress(hex)
			e.approved[addr] = struct{}{}
			e.approvalOrder = append(e.approvalOrder, addr)
		}

		d, err := digest.ForTransaction(w.domain, e.to, e.value, e.payload, e.description, e.nonce)
		if err != nil {
			return errors.Wrapf(err, "recomputing digest for entry %d", record.Index)
		}
		e.digest = d

		w.entries = append(w.entries, e)
	}

	if len(records) > 0 {
		w.logger.Sugar().Infow("Restored transaction ledger", "entries", len(records))
	}
	return nil
}

func (w *Wallet) restoreConsumedSignatures() error {
	if w.store == nil {
		return nil
	}

	hashes, err := w.store.ListConsumedSignatures()
	if err != nil {
		return errors.Wrap(err, "loading consumed signatures")
	}
	for _, hex := range hashes {
		w.usedSigs[common.HexToHash(hex)] = struct{}{}
	}
	return nil
}

// SubmitTransaction proposes a new transaction authorized by an owner
// signature over its intent digest. On success the new entry carries the
// recovered signer's approval and the signature blob is consumed forever.
// Returns the new entry's index and the recovered signer.
func (w *Wallet) SubmitTransaction(to common.Address, value *big.Int, payload []byte, description string, nonce uint64, signature []byte) (uint64, common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if to == (common.Address{}) {
		return 0, common.Address{}, errors.Wrap(ErrInvalidPrincipal, "zero destination")
	}
	// abi uint256 packing would silently wrap a negative value, and effects
	// like the bank would move funds in the wrong direction.
	if value != nil && value.Sign() < 0 {
		return 0, common.Address{}, errors.Wrapf(ErrInvalidValue, "negative value %s", value.String())
	}

	d, err := digest.ForTransaction(w.domain, to, value, payload, description, nonce)
	if err != nil {
		return 0, common.Address{}, errors.Wrap(err, "computing transaction digest")
	}

	// Replay protection: one signature blob authorizes at most one
	// submission, ever, regardless of which transaction it was computed
	// over. The check and the mark below happen under the same lock.
	sigHash := signer.SignatureHash(signature)
	if _, used := w.usedSigs[sigHash]; used {
		return 0, common.Address{}, ErrSignatureAlreadyUsed
	}

	signerAddr, err := signer.RecoverSigner(d, signature)
	if err != nil {
		return 0, common.Address{}, errors.Wrapf(ErrInvalidSignature, "%v", err)
	}

	if !w.registry.IsOwner(signerAddr) {
		return 0, common.Address{}, errors.Wrapf(ErrSignerNotOwner, "signer %s", signerAddr.Hex())
	}

	index := uint64(len(w.entries))
	e := &entry{
		to:            to,
		value:         new(big.Int),
		payload:       append([]byte(nil), payload...),
		description:   description,
		nonce:         nonce,
		digest:        d,
		approved:      map[common.Address]struct{}{signerAddr: {}},
		approvalOrder: []common.Address{signerAddr},
	}
	if value != nil {
		e.value.Set(value)
	}

	// Write through before committing to memory so a storage failure
	// rejects the submission cleanly. The entry and the consumption mark go
	// through one atomic store operation: persisting one without the other
	// would resurrect a rejected entry or reopen a consumed signature after
	// a restart.
	if w.store != nil {
		if err := w.store.SaveSubmission(recordFromEntry(index, e), sigHash.Hex()); err != nil {
			return 0, common.Address{}, errors.Wrap(err, "persisting submission")
		}
	}

	w.entries = append(w.entries, e)
	w.usedSigs[sigHash] = struct{}{}

	w.logger.Sugar().Infow("Transaction submitted",
		"index", index, "to", to.Hex(), "value", e.value.String(), "signer", signerAddr.Hex())
	w.sink.Emit(newEvent(EventTransactionSubmitted, index, signerAddr))

	return index, signerAddr, nil
}

// ApproveTransaction records the caller's approval on a pending entry.
// Approving past the threshold is permitted; extra approvals are recorded,
// not capped.
func (w *Wallet) ApproveTransaction(index uint64, caller common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, err := w.entryAt(index)
	if err != nil {
		return err
	}
	if !w.registry.IsOwner(caller) {
		return errors.Wrapf(ErrNotOwner, "caller %s", caller.Hex())
	}
	if e.executed {
		return errors.Wrapf(ErrTransactionAlreadyExecuted, "index %d", index)
	}
	if _, ok := e.approved[caller]; ok {
		return errors.Wrapf(ErrTransactionAlreadyApproved, "index %d, owner %s", index, caller.Hex())
	}

	if w.store != nil {
		updated := recordFromEntry(index, e)
		updated.Approvals = append(updated.Approvals, caller.Hex())
		if err := w.store.SaveTransaction(updated); err != nil {
			return errors.Wrap(err, "persisting approval")
		}
	}

	e.approved[caller] = struct{}{}
	e.approvalOrder = append(e.approvalOrder, caller)

	w.logger.Sugar().Infow("Transaction approved",
		"index", index, "owner", caller.Hex(), "approvals", len(e.approvalOrder), "required", w.registry.Required())
	w.sink.Emit(newEvent(EventTransactionApproved, index, caller))

	return nil
}

// ExecuteTransaction performs the entry's external effect once the approval
// count meets the registry's current threshold. The threshold is evaluated
// at call time: a later-lowered threshold can make an older entry
// executable, and a later-raised one can make it temporarily non-executable.
//
// The executed flag is set before the effect is invoked and the whole call
// happens inside the engine lock, so the transition is irrevocable and never
// observable half-done. If the effect fails, the call fails with
// ErrExecutionFailed and the flag reverts with it.
func (w *Wallet) ExecuteTransaction(ctx context.Context, index uint64, caller common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, err := w.entryAt(index)
	if err != nil {
		return err
	}
	if !w.registry.IsOwner(caller) {
		return errors.Wrapf(ErrNotOwner, "caller %s", caller.Hex())
	}
	if e.executed {
		return errors.Wrapf(ErrTransactionAlreadyExecuted, "index %d", index)
	}
	if len(e.approvalOrder) < w.registry.Required() {
		return errors.Wrapf(ErrNotEnoughApprovals, "index %d has %d of %d", index, len(e.approvalOrder), w.registry.Required())
	}

	e.executed = true
	if err := w.effect.Call(ctx, e.to, e.value, e.payload); err != nil {
		e.executed = false
		return errors.Wrapf(ErrExecutionFailed, "index %d: %v", index, err)
	}

	if w.store != nil {
		if err := w.store.SaveTransaction(recordFromEntry(index, e)); err != nil {
			// The effect already happened and cannot be unwound; surface the
			// storage failure but keep the executed mark.
			w.logger.Sugar().Errorw("Failed to persist executed transaction",
				"index", index, "error", err)
			return errors.Wrap(err, "persisting execution")
		}
	}

	w.logger.Sugar().Infow("Transaction executed",
		"index", index, "to", e.to.Hex(), "value", e.value.String(), "caller", caller.Hex())
	w.sink.Emit(newEvent(EventTransactionExecuted, index, caller))

	return nil
}

// AddOwner adds a new owner. Only the governance authority may call this.
func (w *Wallet) AddOwner(caller, owner common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireAuthority(caller); err != nil {
		return err
	}
	if err := w.registry.AddOwner(owner); err != nil {
		return err
	}
	if err := w.persistRegistry(); err != nil {
		// Revert the in-memory change so memory and storage stay aligned.
		_ = w.registry.RemoveOwner(owner)
		return err
	}

	w.logger.Sugar().Infow("Owner added", "owner", owner.Hex(), "owners", len(w.registry.Owners()))
	w.sink.Emit(newEvent(EventOwnerAdded, 0, owner))
	return nil
}

// RemoveOwner removes a current owner, provided the remaining set still
// satisfies the threshold. Only the governance authority may call this.
func (w *Wallet) RemoveOwner(caller, owner common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireAuthority(caller); err != nil {
		return err
	}
	if err := w.registry.RemoveOwner(owner); err != nil {
		return err
	}
	if err := w.persistRegistry(); err != nil {
		_ = w.registry.AddOwner(owner)
		return err
	}

	w.logger.Sugar().Infow("Owner removed", "owner", owner.Hex(), "owners", len(w.registry.Owners()))
	w.sink.Emit(newEvent(EventOwnerRemoved, 0, owner))
	return nil
}

// ChangeRequired updates the approval threshold. Only the governance
// authority may call this. Pending entries are re-evaluated against the new
// threshold at their next execute attempt.
func (w *Wallet) ChangeRequired(caller common.Address, required int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireAuthority(caller); err != nil {
		return err
	}
	previous := w.registry.Required()
	if err := w.registry.ChangeRequired(required); err != nil {
		return err
	}
	if err := w.persistRegistry(); err != nil {
		_ = w.registry.ChangeRequired(previous)
		return err
	}

	w.logger.Sugar().Infow("Requirement changed", "previous", previous, "required", required)
	w.sink.Emit(newEvent(EventRequirementChanged, 0, caller))
	return nil
}

// TransactionCount returns the number of ledger entries.
func (w *Wallet) TransactionCount() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return uint64(len(w.entries))
}

// GetTransaction returns a projection of the entry at the given index.
func (w *Wallet) GetTransaction(index uint64) (*types.TransactionRecord, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, err := w.entryAt(index)
	if err != nil {
		return nil, err
	}
	return recordFromEntry(index, e), nil
}

// HasApproved reports whether the owner has approved the entry at the index.
func (w *Wallet) HasApproved(index uint64, owner common.Address) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, err := w.entryAt(index)
	if err != nil {
		return false, err
	}
	_, ok := e.approved[owner]
	return ok, nil
}

// Owners returns the current owner list.
func (w *Wallet) Owners() []common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.registry.Owners()
}

// Required returns the current approval threshold.
func (w *Wallet) Required() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.registry.Required()
}

// Authority returns the governance authority address.
func (w *Wallet) Authority() common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.authority
}

// TransactionDigest computes the digest a signer must sign to authorize the
// given intent on this wallet instance. Exposed so collaborators can
// independently produce the exact bytes to sign.
func (w *Wallet) TransactionDigest(to common.Address, value *big.Int, payload []byte, description string, nonce uint64) (common.Hash, error) {
	return digest.ForTransaction(w.domain, to, value, payload, description, nonce)
}

// LedgerRoot returns the merkle root over all transaction digests in ledger
// order, plus the entry count. An empty ledger yields the zero hash.
func (w *Wallet) LedgerRoot() (common.Hash, uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.entries) == 0 {
		return common.Hash{}, 0, nil
	}

	digests := make([]common.Hash, len(w.entries))
	for i, e := range w.entries {
		digests[i] = e.digest
	}

	tree, err := merkle.BuildLedgerTree(digests)
	if err != nil {
		return common.Hash{}, 0, errors.Wrap(err, "building ledger tree")
	}
	return tree.Root, uint64(len(w.entries)), nil
}

// LedgerProof returns an inclusion proof for the entry at the given index,
// together with the root it verifies against. Auditors holding the entry's
// digest can check membership with merkle.VerifyProof.
func (w *Wallet) LedgerProof(index uint64) (*merkle.Proof, common.Hash, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, err := w.entryAt(index); err != nil {
		return nil, common.Hash{}, err
	}

	digests := make([]common.Hash, len(w.entries))
	for i, e := range w.entries {
		digests[i] = e.digest
	}

	tree, err := merkle.BuildLedgerTree(digests)
	if err != nil {
		return nil, common.Hash{}, errors.Wrap(err, "building ledger tree")
	}
	proof, err := tree.GenerateProof(int(index))
	if err != nil {
		return nil, common.Hash{}, errors.Wrap(err, "generating inclusion proof")
	}
	return proof, tree.Root, nil
}

// entryAt returns the entry at index. Callers must hold the lock.
func (w *Wallet) entryAt(index uint64) (*entry, error) {
	if index >= uint64(len(w.entries)) {
		return nil, errors.Wrapf(ErrTransactionNotFound, "index %d of %d", index, len(w.entries))
	}
	return w.entries[index], nil
}

func (w *Wallet) requireAuthority(caller common.Address) error {
	if caller != w.authority {
		return errors.Wrapf(ErrNotAuthority, "caller %s", caller.Hex())
	}
	return nil
}

func (w *Wallet) persistRegistry() error {
	if w.store == nil {
		return nil
	}
	if err := w.store.SaveRegistryState(w.registryState()); err != nil {
		return errors.Wrap(err, "persisting registry state")
	}
	return nil
}

func (w *Wallet) registryState() *types.RegistryState {
	owners := w.registry.Owners()
	hexOwners := make([]string, len(owners))
	for i, o := range owners {
		hexOwners[i] = o.Hex()
	}
	return &types.RegistryState{
		Owners:    hexOwners,
		Required:  w.registry.Required(),
		Authority: w.authority.Hex(),
	}
}

func recordFromEntry(index uint64, e *entry) *types.TransactionRecord {
	approvals := make([]string, len(e.approvalOrder))
	for i, a := range e.approvalOrder {
		approvals[i] = a.Hex()
	}
	return &types.TransactionRecord{
		Index:       index,
		To:          e.to.Hex(),
		Value:       new(big.Int).Set(e.value),
		Payload:     append([]byte(nil), e.payload...),
		Description: e.description,
		Nonce:       e.nonce,
		Executed:    e.executed,
		Approvals:   approvals,
	}
}
