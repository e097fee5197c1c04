package association

import (
	"context"
	"time"

	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
)

// DeclarativeMatcher generates candidates inside the store with a single
// INSERT ... SELECT.
type DeclarativeMatcher struct {
	cfg Config
	log logger.Logger
}

// NewDeclarativeMatcher creates a DeclarativeMatcher.
func NewDeclarativeMatcher(cfg Config, log logger.Logger) *DeclarativeMatcher {
	return &DeclarativeMatcher{cfg: cfg, log: log.Module("matcher")}
}

// Name returns "declarative".
func (m *DeclarativeMatcher) Name() string { return "declarative" }

// Match implements Matcher.
func (m *DeclarativeMatcher) Match(ctx context.Context, tx *repository.Tx, imageID uint) (int, error) {
	start := time.Now()

	w, err := ComputeWindow(ctx, tx, imageID, m.cfg)
	if err != nil {
		return 0, errors.StoreError(err, "compute_window")
	}
	if w.Empty {
		return 0, nil
	}
	if err := lockWindow(ctx, tx, w); err != nil {
		return 0, errors.StoreError(err, "lock_window")
	}

	t := m.cfg.Thresholds
	n, err := tx.Associations.InsertCandidates(ctx, repository.CandidateQuery{
		ImageID:            imageID,
		HalfWindow:         w.HalfWidth,
		ZoneWidth:          m.cfg.ZoneWidth,
		PointThreshold2:    t.Point * t.Point,
		ExtendedThreshold2: t.Extended * t.Extended,
	})
	if err != nil {
		return 0, errors.StoreError(err, "insert_candidates")
	}

	m.log.Debug("candidates inserted",
		logger.Uint64("image_id", uint64(imageID)),
		logger.Int64("candidates", n),
		logger.Float64("half_window_deg", w.HalfWidth),
		logger.Duration("elapsed", time.Since(start)))

	return int(n), nil
}
