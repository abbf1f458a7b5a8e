package wallet

import "github.com/pkg/errors"

// Every rejected operation fails with one of these sentinels (possibly
// wrapped with call-site context) and leaves all wallet state untouched.
// Callers match with errors.Is. None of these failures are retryable by the
// engine itself; resubmitting with a fresh signature is a client policy.
var (
	// ErrInvalidOwnerSet is returned when a wallet is constructed with an
	// empty owner list or duplicate owners.
	ErrInvalidOwnerSet = errors.New("invalid owner set")

	// ErrInvalidThreshold is returned when the required approval count is
	// zero or exceeds the owner count.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidPrincipal is returned for a zero destination or owner address.
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrInvalidValue is returned for a negative transaction value.
	ErrInvalidValue = errors.New("invalid value")

	// ErrSignatureAlreadyUsed is returned when a submission signature blob
	// has already authorized a prior submission.
	ErrSignatureAlreadyUsed = errors.New("signature already used")

	// ErrInvalidSignature is returned when signer recovery fails.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSignerNotOwner is returned when a submission signature recovers to
	// an address that is not a current owner.
	ErrSignerNotOwner = errors.New("signer is not an owner")

	// ErrNotOwner is returned when the caller of approve or execute is not a
	// current owner.
	ErrNotOwner = errors.New("caller is not an owner")

	// ErrNotAuthority is returned when a governance operation is called by
	// anyone other than the configured governance authority.
	ErrNotAuthority = errors.New("caller is not the governance authority")

	// ErrTransactionNotFound is returned for an out-of-range ledger index.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionAlreadyExecuted is returned when approving or executing
	// an entry that has already executed.
	ErrTransactionAlreadyExecuted = errors.New("transaction already executed")

	// ErrTransactionAlreadyApproved is returned when an owner approves the
	// same entry twice.
	ErrTransactionAlreadyApproved = errors.New("transaction already approved by caller")

	// ErrNotEnoughApprovals is returned when executing an entry whose
	// approval count is below the current threshold.
	ErrNotEnoughApprovals = errors.New("not enough approvals")

	// ErrExecutionFailed is returned when the external effect fails; the
	// whole execute call is rolled back.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrOwnerAlreadyExists is returned when adding an address that is
	// already an owner.
	ErrOwnerAlreadyExists = errors.New("owner already exists")

	// ErrCannotRemoveBelowThreshold is returned when removing an owner would
	// make the threshold unsatisfiable.
	ErrCannotRemoveBelowThreshold = errors.New("cannot remove owner below threshold")
)
