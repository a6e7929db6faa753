package wallet

import "errors"

// Failure kinds shared by every component of the engine. Low-level errors are
// wrapped with one of these at the operation boundary so callers can branch
// with errors.Is.
var (
	// ErrBackendUnavailable is returned when the indexer liveness probe or a
	// mandatory fetch fails. The caller must fail over to another endpoint.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrLookupFailed marks a single tx or genesis lookup that failed. The item
	// is skipped and retried on a later cycle.
	ErrLookupFailed = errors.New("lookup failed")

	// ErrStoreUnavailable is returned when the persistent store cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidRecord marks a persisted record that failed schema validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDuplicateWallet is returned when importing a mnemonic that is already saved.
	ErrDuplicateWallet = errors.New("duplicate wallet")

	// ErrNameCollision is returned when a rename targets a name already in use.
	ErrNameCollision = errors.New("wallet name already in use")

	// ErrWalletNotFound is returned when no wallet matches the request.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrMigrationRequired is returned when a legacy wallet reaches an
	// operation that needs every derivation path.
	ErrMigrationRequired = errors.New("wallet requires migration")
)
