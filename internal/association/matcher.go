package association

import (
	"context"
	"fmt"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
)

// Matcher populates the scratch associations of one image.
type Matcher interface {
	// Match writes every candidate pair of imageID inside tx and returns the
	// number of pairs written. Catalog rows in the scan window are locked on
	// stores that support row locks.
	Match(ctx context.Context, tx *repository.Tx, imageID uint) (int, error)

	// Name returns the configured variant name.
	Name() string
}

// NewMatcher returns the matcher variant named by settings.Matcher.
func NewMatcher(settings *conf.AssociationSettings, log logger.Logger) (Matcher, error) {
	cfg := ConfigFrom(settings)
	switch settings.Matcher {
	case conf.MatcherDeclarative:
		return NewDeclarativeMatcher(cfg, log), nil
	case conf.MatcherVectorized:
		return NewVectorizedMatcher(cfg, NewGoKernel, log), nil
	default:
		return nil, errors.ConfigError(fmt.Errorf("unknown matcher %q", settings.Matcher), "association.matcher")
	}
}

// lockWindow takes row locks on the live catalog rows of w. SQLite serializes
// writers per database, so there is nothing to lock there.
func lockWindow(ctx context.Context, tx *repository.Tx, w Window) error {
	if !tx.IsMySQL() {
		return nil
	}
	_, err := tx.Catalog.ListWindow(ctx, w.Region, true)
	return err
}
