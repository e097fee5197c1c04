// Package catalog applies classified associations to the running catalog:
// direct weighted-mean updates, group merges and new entries.
package catalog

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/tphakala/runcat/internal/aggregate"
	"github.com/tphakala/runcat/internal/association"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
)

// Clock returns the current time.
type Clock func() time.Time

// Updater writes catalog changes for one image inside the caller's transaction.
type Updater struct {
	zoneWidth float64
	batchSize int
	now       Clock
	log       logger.Logger
}

// NewUpdater creates an Updater. A nil clock uses time.Now.
func NewUpdater(zoneWidth float64, batchSize int, now Clock, log logger.Logger) *Updater {
	if now == nil {
		now = time.Now
	}
	return &Updater{
		zoneWidth: zoneWidth,
		batchSize: batchSize,
		now:       now,
		log:       log.Module("catalog"),
	}
}

// Batch is the input of one image's catalog update.
type Batch struct {
	Image   *entities.Image
	Sources map[uint]*entities.ExtractedSource
}

// Result counts the changes of one Apply* call.
type Result struct {
	Updated     int // entries that received detections directly
	Merged      int // entries collapsed into a group head
	Created     int // new entries
	Memberships []entities.CatalogMembership
}

// touch returns the timestamp for a write to e. It is strictly after e's
// last fit so the cached spectrum is seen as stale.
func (u *Updater) touch(e *entities.RunningCatalog) time.Time {
	at := u.now().UTC().Truncate(time.Microsecond)
	if e.LastFit != nil && !at.After(*e.LastFit) {
		at = e.LastFit.Add(time.Microsecond)
	}
	return at
}

// fluxState loads the flux accumulators of one entry keyed by band.
func fluxState(rows []entities.RunningCatalogFlux) map[uint]*aggregate.Flux {
	out := make(map[uint]*aggregate.Flux, len(rows))
	for i := range rows {
		f := aggregate.FluxOf(&rows[i])
		out[rows[i].BandID] = &f
	}
	return out
}

func addFlux(state map[uint]*aggregate.Flux, bandID uint, src *entities.ExtractedSource) {
	f, ok := state[bandID]
	if !ok {
		f = &aggregate.Flux{}
		state[bandID] = f
	}
	f.AddDetection(src.Flux, src.FluxErr)
}

func fluxRows(runcatID uint, state map[uint]*aggregate.Flux) []entities.RunningCatalogFlux {
	rows := make([]entities.RunningCatalogFlux, 0, len(state))
	for _, band := range slices.Sorted(maps.Keys(state)) {
		rows = append(rows, state[band].Row(runcatID, band))
	}
	return rows
}

func membership(a entities.Association, runcatID uint) entities.CatalogMembership {
	return entities.CatalogMembership{
		SourceID:       a.SourceID,
		RuncatID:       runcatID,
		ImageID:        a.ImageID,
		Relation:       a.Relation,
		DistanceArcsec: a.DistanceArcsec,
		R:              a.R,
	}
}

func (b *Batch) source(id uint) (*entities.ExtractedSource, error) {
	src, ok := b.Sources[id]
	if !ok {
		return nil, errors.Newf("detection %d not loaded for image %d", id, b.Image.ID).
			Component("catalog").
			Category(errors.CategoryState).
			ImageContext(b.Image.ID).
			Build()
	}
	return src, nil
}

// ApplyDirect merges one-to-one and many-to-one detections into their entries.
func (u *Updater) ApplyDirect(ctx context.Context, tx *repository.Tx, b *Batch, direct map[uint][]entities.Association) (Result, error) {
	var res Result
	if len(direct) == 0 {
		return res, nil
	}

	ids := slices.Sorted(maps.Keys(direct))
	entries, err := tx.Catalog.GetByIDs(ctx, ids, true)
	if err != nil {
		return res, errors.StoreError(err, "load_entries")
	}
	fluxes, err := tx.Catalog.Fluxes(ctx, ids)
	if err != nil {
		return res, errors.StoreError(err, "load_fluxes")
	}

	var rows []entities.RunningCatalogFlux
	for _, id := range ids {
		entry, ok := entries[id]
		if !ok {
			return res, errors.StoreError(repository.ErrCatalogEntryNotFound, "load_entries")
		}

		pos := aggregate.PositionOf(entry)
		flux := fluxState(fluxes[id])
		for _, a := range direct[id] {
			src, err := b.source(a.SourceID)
			if err != nil {
				return res, err
			}
			pos.AddDetection(src.RA, src.Decl, src.RAErr, src.DeclErr)
			addFlux(flux, b.Image.BandID, src)
			res.Memberships = append(res.Memberships, membership(a, id))
		}

		pos.ApplyTo(entry, u.zoneWidth)
		entry.Revision++
		entry.LastUpdate = u.touch(entry)
		if err := tx.Catalog.Save(ctx, entry); err != nil {
			return res, errors.StoreError(err, "save_entry")
		}
		rows = append(rows, fluxRows(id, flux)...)
		res.Updated++
	}

	if err := tx.Catalog.SaveFluxes(ctx, rows, u.batchSize); err != nil {
		return res, errors.StoreError(err, "save_fluxes")
	}
	return res, nil
}

// ApplyGroup collapses a group into its head: member sums and flux rows are
// folded into the head, members are marked deleted and pointed at the head,
// and the group's detections are merged into the head.
func (u *Updater) ApplyGroup(ctx context.Context, tx *repository.Tx, b *Batch, g association.Group) (Result, error) {
	var res Result

	entries, err := tx.Catalog.GetByIDs(ctx, g.RuncatIDs, true)
	if err != nil {
		return res, errors.StoreError(err, "load_entries")
	}
	fluxes, err := tx.Catalog.Fluxes(ctx, g.RuncatIDs)
	if err != nil {
		return res, errors.StoreError(err, "load_fluxes")
	}

	headID := g.Head()
	head, ok := entries[headID]
	if !ok {
		return res, errors.StoreError(repository.ErrCatalogEntryNotFound, "load_entries")
	}

	pos := aggregate.PositionOf(head)
	flux := fluxState(fluxes[headID])
	for _, id := range g.Members() {
		member, ok := entries[id]
		if !ok {
			return res, errors.StoreError(repository.ErrCatalogEntryNotFound, "load_entries")
		}
		pos.Merge(aggregate.PositionOf(member))
		for band, f := range fluxState(fluxes[id]) {
			if hf, ok := flux[band]; ok {
				hf.Merge(*f)
			} else {
				flux[band] = f
			}
		}
	}

	// One membership per detection even when it matched several members.
	recorded := make(map[uint]bool, len(g.SourceIDs))
	for _, a := range g.Pairs {
		if recorded[a.SourceID] {
			continue
		}
		recorded[a.SourceID] = true

		src, err := b.source(a.SourceID)
		if err != nil {
			return res, err
		}
		pos.AddDetection(src.RA, src.Decl, src.RAErr, src.DeclErr)
		addFlux(flux, b.Image.BandID, src)
		res.Memberships = append(res.Memberships, membership(a, headID))
	}

	at := u.touch(head)
	if members := g.Members(); len(members) > 0 {
		if err := tx.Catalog.RepointHeads(ctx, members, headID); err != nil {
			return res, errors.StoreError(err, "repoint_heads")
		}
		if err := tx.Catalog.MarkMerged(ctx, members, headID, at); err != nil {
			return res, errors.StoreError(err, "mark_merged")
		}
	}

	pos.ApplyTo(head, u.zoneWidth)
	head.Revision++
	head.LastUpdate = at
	if err := tx.Catalog.Save(ctx, head); err != nil {
		return res, errors.StoreError(err, "save_entry")
	}
	if err := tx.Catalog.SaveFluxes(ctx, fluxRows(headID, flux), u.batchSize); err != nil {
		return res, errors.StoreError(err, "save_fluxes")
	}

	res.Updated = 1
	res.Merged = len(g.Members())

	u.log.Debug("group collapsed",
		logger.Uint64("image_id", uint64(b.Image.ID)),
		logger.Uint64("head_id", uint64(headID)),
		logger.Int("members", res.Merged),
		logger.Int("sources", len(g.SourceIDs)))

	return res, nil
}

// CreateEntries seeds one new entry per unmatched detection.
func (u *Updater) CreateEntries(ctx context.Context, tx *repository.Tx, b *Batch, unmatched []uint) (Result, error) {
	var res Result
	if len(unmatched) == 0 {
		return res, nil
	}

	at := u.now().UTC().Truncate(time.Microsecond)
	seeds := make([]entities.RunningCatalog, 0, len(unmatched))
	for _, id := range unmatched {
		src, err := b.source(id)
		if err != nil {
			return res, err
		}
		seeds = append(seeds, aggregate.NewEntry(src, u.zoneWidth, at))
	}

	stored, err := tx.Catalog.BatchGetOrCreate(ctx, seeds, u.batchSize)
	if err != nil {
		return res, errors.StoreError(err, "create_entries")
	}

	rows := make([]entities.RunningCatalogFlux, 0, len(unmatched))
	for _, id := range unmatched {
		src := b.Sources[id]
		entry := stored[id]

		var f aggregate.Flux
		f.AddDetection(src.Flux, src.FluxErr)
		rows = append(rows, f.Row(entry.ID, b.Image.BandID))
		res.Memberships = append(res.Memberships, entities.CatalogMembership{
			SourceID: id,
			RuncatID: entry.ID,
			ImageID:  b.Image.ID,
			Relation: entities.RelationNew,
		})
	}
	if err := tx.Catalog.SaveFluxes(ctx, rows, u.batchSize); err != nil {
		return res, errors.StoreError(err, "save_fluxes")
	}

	res.Created = len(unmatched)
	return res, nil
}

// RecordMemberships stores the memberships collected by the Apply* calls.
func (u *Updater) RecordMemberships(ctx context.Context, tx *repository.Tx, rows []entities.CatalogMembership) error {
	if err := tx.Memberships.InsertBatch(ctx, rows, u.batchSize); err != nil {
		return errors.StoreError(err, "record_memberships")
	}
	return nil
}
