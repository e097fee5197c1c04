package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/runcat/internal/errors"
)

// Repositories groups every repository bound to one *gorm.DB, either the
// connection pool or an open transaction.
type Repositories struct {
	Images       ImageRepository
	Sources      SourceRepository
	Catalog      CatalogRepository
	Associations AssociationRepository
	Memberships  MembershipRepository

	db      *gorm.DB
	isMySQL bool
}

func newRepositories(db *gorm.DB, isMySQL bool) Repositories {
	return Repositories{
		Images:       NewImageRepository(db, isMySQL),
		Sources:      NewSourceRepository(db),
		Catalog:      NewCatalogRepository(db, isMySQL),
		Associations: NewAssociationRepository(db),
		Memberships:  NewMembershipRepository(db),
		db:           db,
		isMySQL:      isMySQL,
	}
}

// DB returns the handle the repositories are bound to.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// IsMySQL reports whether the repositories run against MySQL.
func (r *Repositories) IsMySQL() bool {
	return r.isMySQL
}

// Store is the transactional entry point to the catalog database.
type Store struct {
	Repositories
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB, isMySQL bool) *Store {
	return &Store{Repositories: newRepositories(db, isMySQL)}
}

// Tx is an open transaction. Repositories on a Tx see its uncommitted writes.
type Tx struct {
	Repositories
	done bool
}

// Begin opens a transaction. The caller must Commit or Rollback it.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.StoreError(tx.Error, "begin")
	}
	return &Tx{Repositories: newRepositories(tx, s.isMySQL)}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.db.Commit().Error; err != nil {
		return errors.StoreError(err, "commit")
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction
// returns ErrTxDone.
func (t *Tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.db.Rollback().Error; err != nil {
		return errors.StoreError(err, "rollback")
	}
	return nil
}

// Transaction runs fn inside a transaction, committing when fn returns nil
// and rolling back otherwise, including when fn panics.
//
// Errors from fn that are not already enhanced errors are wrapped as store
// errors; categorized errors pass through unchanged.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(wrapStoreError(fnErr, "transaction"), rbErr)
		}
		return wrapStoreError(fnErr, "transaction")
	}

	return tx.Commit()
}

// wrapStoreError wraps plain errors as store errors. Sentinels stay
// reachable through errors.Is.
func wrapStoreError(err error, operation string) error {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		return err
	}
	return errors.StoreError(fmt.Errorf("%s: %w", operation, err), operation)
}
