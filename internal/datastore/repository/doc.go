// Package repository provides access to the running catalog tables.
//
// # Error Handling
//
// Repositories return sentinel errors (ErrImageNotFound, etc.) for missing
// rows and raw driver errors otherwise. Store.Transaction converts anything
// that is not already categorized into a store error.
//
// # Transactions
//
// Every repository is bound to a *gorm.DB. Store.Begin returns a Tx whose
// repositories share one database transaction, so all writes of an image run
// commit or roll back together.
//
// # Locking
//
// On MySQL, reads taken with forUpdate use SELECT ... FOR UPDATE. SQLite
// serializes writers at the database level and ignores the flag.
//
// # Required Schema Constraints
//
// GetOrCreate methods rely on unique constraints for race safety:
//
//   - running_catalog: UNIQUE(seed_source_id)
//   - frequency_bands: PRIMARY KEY(id)
//   - running_catalog_flux: PRIMARY KEY(runcat_id, band_id)
package repository
