// Package pipeline merges images into the running catalog. Each image is
// processed in a single transaction: either every catalog change of the
// image is committed together with its processed status, or nothing is.
package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/tphakala/runcat/internal/association"
	"github.com/tphakala/runcat/internal/buildinfo"
	"github.com/tphakala/runcat/internal/catalog"
	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/ingest"
	"github.com/tphakala/runcat/internal/logger"
	"github.com/tphakala/runcat/internal/observability/metrics"
	"github.com/tphakala/runcat/internal/parset"
)

// Engine processes images one at a time.
type Engine struct {
	store    *repository.Store
	provider parset.Provider
	matcher  association.Matcher
	updater  *catalog.Updater
	build    buildinfo.BuildInfo
	metrics  *metrics.CatalogMetrics
	now      catalog.Clock
	newRunID func() string
	log      logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records processing metrics on m.
func WithMetrics(m *metrics.CatalogMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock replaces time.Now for catalog and image timestamps.
func WithClock(now catalog.Clock) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMatcher replaces the matcher selected by settings.
func WithMatcher(m association.Matcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(fn func() string) Option {
	return func(e *Engine) {
		e.newRunID = fn
	}
}

// NewEngine creates an Engine. The matcher variant comes from settings
// unless WithMatcher is given.
func NewEngine(settings *conf.Settings, store *repository.Store, provider parset.Provider,
	build buildinfo.BuildInfo, log logger.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    store,
		provider: provider,
		build:    build,
		now:      time.Now,
		newRunID: buildinfo.NewRunID,
		log:      log.Module("pipeline"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.matcher == nil {
		m, err := association.NewMatcher(&settings.Association, log)
		if err != nil {
			return nil, err
		}
		e.matcher = m
	}
	e.updater = catalog.NewUpdater(settings.Association.ZoneWidth, settings.Association.BatchSize, e.now, log)
	return e, nil
}

// Report summarizes one processed image.
type Report struct {
	ImageID    uint
	RunID      string
	Sources    int
	Candidates int
	Relations  map[entities.Relation]int
	Updated    int // entries updated directly or as group heads
	Groups     int
	Merged     int
	Created    int
	Active     int64
	Duration   time.Duration
}

// ProcessImage merges the detections of imageID into the catalog.
//
// It fails with an image state error when the image is already processed,
// a configuration error when its descriptor is incomplete, a source data
// error when a detection is malformed and a store error when the database
// fails. On any error the transaction is rolled back and the image stays
// unprocessed.
func (e *Engine) ProcessImage(ctx context.Context, imageID uint) (*Report, error) {
	start := time.Now()
	runID := e.newRunID()
	ctx = logger.WithTraceID(ctx, runID)
	log := e.log.WithContext(ctx).With(logger.Uint64("image_id", uint64(imageID)))

	report, err := e.process(ctx, imageID, runID, log)
	if err != nil {
		e.metrics.RecordImageFailed(string(errors.CategoryOf(err)))
		log.Warn("image processing failed",
			logger.String("category", string(errors.CategoryOf(err))),
			logger.Error(err))
		return nil, err
	}

	report.Duration = time.Since(start)
	e.recordMetrics(report)
	log.Info("image processed",
		logger.Int("sources", report.Sources),
		logger.Int("candidates", report.Candidates),
		logger.Int("updated", report.Updated),
		logger.Int("groups", report.Groups),
		logger.Int("merged", report.Merged),
		logger.Int("created", report.Created),
		logger.Int64("active_entries", report.Active),
		logger.Duration("duration", report.Duration))
	return report, nil
}

func (e *Engine) process(ctx context.Context, imageID uint, runID string, log logger.Logger) (*Report, error) {
	image, err := e.store.Images.Get(ctx, imageID)
	if err != nil {
		return nil, imageLookupError(err, imageID)
	}
	if image.IsProcessed() {
		return nil, errors.ImageStateError(imageID, "already processed")
	}

	desc, err := e.provider.Descriptor(ctx, imageID)
	if err != nil {
		return nil, err
	}

	report := &Report{ImageID: imageID, RunID: runID, Relations: make(map[entities.Relation]int)}
	err = e.store.Transaction(ctx, func(tx *repository.Tx) error {
		return e.merge(ctx, tx, imageID, desc, report, log)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// merge runs every catalog step of one image inside tx.
func (e *Engine) merge(ctx context.Context, tx *repository.Tx, imageID uint, desc *parset.Descriptor, report *Report, log logger.Logger) error {
	// Re-check under the row lock; another engine may have won the race.
	image, err := tx.Images.GetForUpdate(ctx, imageID)
	if err != nil {
		return imageLookupError(err, imageID)
	}
	if image.IsProcessed() {
		return errors.ImageStateError(imageID, "already processed")
	}

	if desc.BandID != image.BandID {
		return errors.ConfigError(
			fmt.Errorf("image %d was registered in band %d but its descriptor names band %d", imageID, image.BandID, desc.BandID),
			"band")
	}
	if _, err := tx.Images.EnsureBand(ctx, &entities.Band{
		ID:              desc.BandID,
		CenterFrequency: desc.Frequency,
		Bandwidth:       desc.Bandwidth,
	}); err != nil {
		return bandError(err)
	}
	image.Frequency = desc.Frequency

	if err := tx.Associations.ClearImage(ctx, imageID); err != nil {
		return errors.StoreError(err, "clear_associations")
	}

	sources, err := tx.Sources.ListByImage(ctx, imageID)
	if err != nil {
		return errors.StoreError(err, "load_sources")
	}
	batch := &catalog.Batch{Image: image, Sources: make(map[uint]*entities.ExtractedSource, len(sources))}
	for i := range sources {
		if err := ingest.ValidateSource(&sources[i], sources[i].ID); err != nil {
			return err
		}
		batch.Sources[sources[i].ID] = &sources[i]
	}
	report.Sources = len(sources)

	if _, err := e.matcher.Match(ctx, tx, imageID); err != nil {
		return err
	}
	rows, err := tx.Associations.ListByImage(ctx, imageID)
	if err != nil {
		return errors.StoreError(err, "load_associations")
	}
	report.Candidates = len(rows)

	cls := association.Classify(rows)
	if err := tx.Associations.SetRelations(ctx, cls.Relations); err != nil {
		return errors.StoreError(err, "set_relations")
	}
	for _, rel := range cls.Relations {
		report.Relations[rel]++
	}

	var memberships []entities.CatalogMembership

	direct, err := e.updater.ApplyDirect(ctx, tx, batch, cls.Direct)
	if err != nil {
		return err
	}
	report.Updated += direct.Updated
	memberships = append(memberships, direct.Memberships...)

	for _, g := range association.Partition(cls.Ambiguous) {
		res, err := e.updater.ApplyGroup(ctx, tx, batch, g)
		if err != nil {
			return err
		}
		report.Groups++
		report.Updated += res.Updated
		report.Merged += res.Merged
		memberships = append(memberships, res.Memberships...)
	}

	matched := make(map[uint]struct{}, len(rows))
	for _, a := range rows {
		matched[a.SourceID] = struct{}{}
	}
	var unmatched []uint
	for _, id := range slices.Sorted(maps.Keys(batch.Sources)) {
		if _, ok := matched[id]; !ok {
			unmatched = append(unmatched, id)
		}
	}
	created, err := e.updater.CreateEntries(ctx, tx, batch, unmatched)
	if err != nil {
		return err
	}
	report.Created = created.Created
	report.Relations[entities.RelationNew] += created.Created
	memberships = append(memberships, created.Memberships...)

	if err := e.updater.RecordMemberships(ctx, tx, memberships); err != nil {
		return err
	}
	// Relations now live on the memberships.
	if err := tx.Associations.ClearImage(ctx, imageID); err != nil {
		return errors.StoreError(err, "clear_associations")
	}

	at := e.now().UTC().Truncate(time.Microsecond)
	stamp := repository.ProcessedStamp{
		BandID:    image.BandID,
		Frequency: image.Frequency,
		Version:   e.build.GetVersion(),
		RunID:     report.RunID,
		At:        at,
	}
	if err := tx.Images.MarkProcessed(ctx, imageID, stamp); err != nil {
		if errors.Is(err, repository.ErrImageAlreadyProcessed) {
			return errors.ImageStateError(imageID, "already processed")
		}
		return errors.StoreError(err, "mark_processed")
	}

	active, err := tx.Catalog.CountActive(ctx)
	if err != nil {
		return errors.StoreError(err, "count_active")
	}
	report.Active = active

	log.Debug("catalog updated",
		logger.String("matcher", e.matcher.Name()),
		logger.Int("direct_entries", direct.Updated),
		logger.Int("unmatched", len(unmatched)))
	return nil
}

// ProcessPending processes unprocessed images in id order, up to limit when
// positive, and stops at the first failure. Reports of the images processed
// before the failure are returned with the error.
func (e *Engine) ProcessPending(ctx context.Context, limit int) ([]*Report, error) {
	images, err := e.store.Images.ListUnprocessed(ctx, limit)
	if err != nil {
		return nil, errors.StoreError(err, "list_unprocessed")
	}

	reports := make([]*Report, 0, len(images))
	for i := range images {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := e.ProcessImage(ctx, images[i].ID)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// bandError reports a band registered at another frequency as a configuration
// problem of the image descriptor.
func bandError(err error) error {
	if errors.Is(err, repository.ErrBandConflict) {
		return errors.ConfigError(err, "frequency")
	}
	return errors.StoreError(err, "ensure_band")
}

func imageLookupError(err error, imageID uint) error {
	if errors.Is(err, repository.ErrImageNotFound) {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryNotFound).
			ImageContext(imageID).
			Build()
	}
	return errors.StoreError(err, "load_image")
}

func (e *Engine) recordMetrics(r *Report) {
	relations := make(map[string]int, len(r.Relations))
	for rel, n := range r.Relations {
		relations[string(rel)] = n
	}
	e.metrics.RecordImageProcessed(metrics.ImageResult{
		Candidates: r.Candidates,
		Relations:  relations,
		Created:    r.Created,
		Merged:     r.Merged,
		Groups:     r.Groups,
		Active:     r.Active,
		Seconds:    r.Duration.Seconds(),
	})
}
