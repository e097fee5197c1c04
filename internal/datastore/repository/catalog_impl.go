package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/errors"
)

// catalogSaveColumns are the columns written by Save.
var catalogSaveColumns = []string{
	"wm_ra", "wm_decl", "wm_ra_err", "wm_decl_err",
	"x", "y", "z", "zone",
	"ra_weight_sum", "ra_value_sum", "decl_weight_sum", "decl_value_sum",
	"datapoints", "group_head_id", "deleted",
	"revision", "last_update",
}

// catalogRepository implements CatalogRepository.
type catalogRepository struct {
	db      *gorm.DB
	isMySQL bool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *gorm.DB, isMySQL bool) CatalogRepository {
	return &catalogRepository{db: db, isMySQL: isMySQL}
}

func (r *catalogRepository) Get(ctx context.Context, id uint) (*entities.RunningCatalog, error) {
	var entry entities.RunningCatalog
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCatalogEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *catalogRepository) GetByIDs(ctx context.Context, ids []uint, forUpdate bool) (map[uint]*entities.RunningCatalog, error) {
	result := make(map[uint]*entities.RunningCatalog, len(ids))
	for _, chunk := range chunkIDs(ids, inClauseChunk) {
		var entries []entities.RunningCatalog
		q := lockForUpdate(r.db.WithContext(ctx), r.isMySQL, forUpdate)
		if err := q.Where("id IN ?", chunk).Order("id ASC").Find(&entries).Error; err != nil {
			return nil, err
		}
		for i := range entries {
			result[entries[i].ID] = &entries[i]
		}
	}
	return result, nil
}

func (r *catalogRepository) ListWindow(ctx context.Context, w Window, forUpdate bool) ([]entities.RunningCatalog, error) {
	var entries []entities.RunningCatalog
	q := lockForUpdate(r.db.WithContext(ctx), r.isMySQL, forUpdate)
	err := q.Where("zone BETWEEN ? AND ?", w.ZoneLo, w.ZoneHi).
		Where("wm_decl BETWEEN ? AND ?", w.DeclLo, w.DeclHi).
		Where("deleted = ?", false).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *catalogRepository) MaxDeclErr(ctx context.Context) (float64, error) {
	var maxErr sql.NullFloat64
	if err := r.db.WithContext(ctx).Model(&entities.RunningCatalog{}).
		Where("deleted = ?", false).
		Select("MAX(wm_decl_err)").
		Row().Scan(&maxErr); err != nil {
		return 0, err
	}
	return maxErr.Float64, nil
}

func (r *catalogRepository) BatchGetOrCreate(ctx context.Context, entries []entities.RunningCatalog, batch int) (map[uint]*entities.RunningCatalog, error) {
	result := make(map[uint]*entities.RunningCatalog, len(entries))
	if len(entries) == 0 {
		return result, nil
	}

	rows := make([]entities.RunningCatalog, len(entries))
	copy(rows, entries)
	seeds := make([]uint, len(rows))
	for i := range rows {
		rows[i].ID = 0
		seeds[i] = rows[i].SeedSourceID
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "seed_source_id"}},
			DoNothing: true,
		}).
		CreateInBatches(&rows, batchSize(batch)).Error
	if err != nil {
		return nil, err
	}

	// Refetch so ids are correct whether this call or another writer won.
	for _, chunk := range chunkIDs(seeds, inClauseChunk) {
		var stored []entities.RunningCatalog
		if err := r.db.WithContext(ctx).Where("seed_source_id IN ?", chunk).Find(&stored).Error; err != nil {
			return nil, err
		}
		for i := range stored {
			result[stored[i].SeedSourceID] = &stored[i]
		}
	}

	if len(result) != len(entries) {
		return nil, fmt.Errorf("get-or-create returned %d of %d catalog entries", len(result), len(entries))
	}
	return result, nil
}

func (r *catalogRepository) Save(ctx context.Context, entry *entities.RunningCatalog) error {
	result := r.db.WithContext(ctx).Model(entry).
		Select(catalogSaveColumns).
		Updates(entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCatalogEntryNotFound
	}
	return nil
}

func (r *catalogRepository) MarkMerged(ctx context.Context, ids []uint, head uint, at time.Time) error {
	for _, chunk := range chunkIDs(ids, inClauseChunk) {
		err := r.db.WithContext(ctx).Model(&entities.RunningCatalog{}).
			Where("id IN ?", chunk).
			Updates(map[string]any{
				"deleted":       true,
				"group_head_id": head,
				"revision":      gorm.Expr("revision + 1"),
				"last_update":   at,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *catalogRepository) RepointHeads(ctx context.Context, from []uint, head uint) error {
	for _, chunk := range chunkIDs(from, inClauseChunk) {
		err := r.db.WithContext(ctx).Model(&entities.RunningCatalog{}).
			Where("group_head_id IN ?", chunk).
			Update("group_head_id", head).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *catalogRepository) ResolveHead(ctx context.Context, id uint) (uint, error) {
	current := id
	for range maxHeadHops {
		entry, err := r.Get(ctx, current)
		if err != nil {
			return 0, err
		}
		if entry.GroupHeadID == nil || *entry.GroupHeadID == entry.ID {
			return entry.ID, nil
		}
		current = *entry.GroupHeadID
	}
	return 0, ErrHeadChainTooLong
}

func (r *catalogRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.RunningCatalog{}).
		Where("deleted = ?", false).
		Count(&count).Error
	return count, err
}

func (r *catalogRepository) ListActive(ctx context.Context) ([]entities.RunningCatalog, error) {
	var entries []entities.RunningCatalog
	if err := r.db.WithContext(ctx).
		Where("deleted = ?", false).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *catalogRepository) SaveSpectrum(ctx context.Context, id uint, revision int64, fit SpectrumFit) error {
	result := r.db.WithContext(ctx).Model(&entities.RunningCatalog{}).
		Where("id = ? AND revision = ?", id, revision).
		Updates(map[string]any{
			"spectral_order":      fit.Order,
			"spectral_coeffs":     fit.Coeffs,
			"spectral_chi_square": fit.ChiSquare,
			"spectral_bands":      fit.Bands,
			"last_fit":            fit.FittedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrStaleRevision
	}
	return nil
}

func (r *catalogRepository) Fluxes(ctx context.Context, ids []uint) (map[uint][]entities.RunningCatalogFlux, error) {
	result := make(map[uint][]entities.RunningCatalogFlux, len(ids))
	for _, chunk := range chunkIDs(ids, inClauseChunk) {
		var rows []entities.RunningCatalogFlux
		if err := r.db.WithContext(ctx).
			Where("runcat_id IN ?", chunk).
			Order("runcat_id ASC, band_id ASC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.RuncatID] = append(result[row.RuncatID], row)
		}
	}
	return result, nil
}

func (r *catalogRepository) SaveFluxes(ctx context.Context, rows []entities.RunningCatalogFlux, batch int) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "runcat_id"}, {Name: "band_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"wm_flux", "wm_flux_err", "flux_weight_sum", "flux_value_sum", "datapoints",
			}),
		}).
		CreateInBatches(rows, batchSize(batch)).Error
}

func (r *catalogRepository) CountFluxRows(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.RunningCatalogFlux{}).Count(&count).Error
	return count, err
}
