package repository

import "github.com/tphakala/runcat/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrImageNotFound indicates the requested image does not exist.
	ErrImageNotFound = errors.NewStd("image not found")

	// ErrImageAlreadyProcessed indicates a processed image was marked again.
	ErrImageAlreadyProcessed = errors.NewStd("image already processed")

	// ErrBandNotFound indicates the requested frequency band does not exist.
	ErrBandNotFound = errors.NewStd("frequency band not found")

	// ErrBandConflict indicates a band id already registered at another frequency.
	ErrBandConflict = errors.NewStd("frequency band registered with a different frequency")

	// ErrCatalogEntryNotFound indicates the requested catalog entry does not exist.
	ErrCatalogEntryNotFound = errors.NewStd("catalog entry not found")

	// ErrHeadChainTooLong indicates group_head_id pointers form a cycle or an
	// uncompressed chain.
	ErrHeadChainTooLong = errors.NewStd("group head chain too long")

	// ErrStaleRevision indicates a conditional update lost a race.
	ErrStaleRevision = errors.NewStd("catalog entry changed concurrently")

	// ErrTxDone indicates Commit or Rollback was called twice.
	ErrTxDone = errors.NewStd("transaction already finished")
)
