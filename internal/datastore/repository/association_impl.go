package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/runcat/internal/datastore/entities"
)

// candidateSQL generates candidates for one image against the live catalog.
//
// The innermost query joins detections with catalog rows inside the
// declination window and computes the squared chord, the on-sky offsets in
// arcsec and the combined variances; the middle query forms r^2; the outer
// query applies the per-kind threshold and converts the chord to an angle.
// SQRT, COS, ASIN, RADIANS, DEGREES and FLOOR are native on MySQL and
// registered on SQLite connections by the datastore package.
const candidateSQL = `
INSERT INTO associations (image_id, source_id, runcat_id, source_kind, distance_arcsec, r, relation)
SELECT ?, c.source_id, c.runcat_id, c.kind,
       3600 * DEGREES(2 * ASIN(SQRT(c.chord2) / 2)),
       SQRT(c.r2),
       ''
FROM (
    SELECT d.source_id, d.runcat_id, d.kind, d.chord2,
           d.dra * d.dra / d.ra_var + d.ddec * d.ddec / d.decl_var AS r2
    FROM (
        SELECT e.id AS source_id,
               rc.id AS runcat_id,
               e.kind AS kind,
               (e.x - rc.x) * (e.x - rc.x) + (e.y - rc.y) * (e.y - rc.y) + (e.z - rc.z) * (e.z - rc.z) AS chord2,
               (CASE
                    WHEN e.ra - rc.wm_ra > 180 THEN e.ra - rc.wm_ra - 360
                    WHEN e.ra - rc.wm_ra < -180 THEN e.ra - rc.wm_ra + 360
                    ELSE e.ra - rc.wm_ra
                END) * 3600 * COS(RADIANS(e.decl)) AS dra,
               (e.decl - rc.wm_decl) * 3600 AS ddec,
               rc.wm_ra_err * rc.wm_ra_err + e.ra_err * e.ra_err AS ra_var,
               rc.wm_decl_err * rc.wm_decl_err + e.decl_err * e.decl_err AS decl_var
        FROM extracted_sources e
        JOIN running_catalog rc
          ON rc.zone BETWEEN FLOOR((e.decl - ?) / ?) AND FLOOR((e.decl + ?) / ?)
         AND rc.wm_decl BETWEEN e.decl - ? AND e.decl + ?
        WHERE e.image_id = ?
          AND rc.deleted = ?
    ) d
) c
WHERE c.r2 < CASE WHEN c.kind = ? THEN ? ELSE ? END`

// associationRepository implements AssociationRepository.
type associationRepository struct {
	db *gorm.DB
}

// NewAssociationRepository creates a new AssociationRepository.
func NewAssociationRepository(db *gorm.DB) AssociationRepository {
	return &associationRepository{db: db}
}

func (r *associationRepository) ClearImage(ctx context.Context, imageID uint) error {
	return r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Delete(&entities.Association{}).Error
}

func (r *associationRepository) InsertBatch(ctx context.Context, rows []entities.Association, batch int) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, batchSize(batch)).Error
}

func (r *associationRepository) InsertCandidates(ctx context.Context, q CandidateQuery) (int64, error) {
	w := q.HalfWindow
	result := r.db.WithContext(ctx).Exec(candidateSQL,
		q.ImageID,
		w, q.ZoneWidth, w, q.ZoneWidth,
		w, w,
		q.ImageID,
		false,
		entities.SourceKindPoint, q.PointThreshold2, q.ExtendedThreshold2,
	)
	return result.RowsAffected, result.Error
}

func (r *associationRepository) ListByImage(ctx context.Context, imageID uint) ([]entities.Association, error) {
	var rows []entities.Association
	if err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("source_id ASC, runcat_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *associationRepository) SetRelations(ctx context.Context, relations map[uint]entities.Relation) error {
	// One UPDATE per relation kind.
	byRelation := make(map[entities.Relation][]uint)
	for id, rel := range relations {
		byRelation[rel] = append(byRelation[rel], id)
	}
	for rel, ids := range byRelation {
		for _, chunk := range chunkIDs(ids, inClauseChunk) {
			if err := r.db.WithContext(ctx).Model(&entities.Association{}).
				Where("id IN ?", chunk).
				Update("relation", rel).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// membershipRepository implements MembershipRepository.
type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) InsertBatch(ctx context.Context, rows []entities.CatalogMembership, batch int) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, batchSize(batch)).Error
}

func (r *membershipRepository) ListByImage(ctx context.Context, imageID uint) ([]entities.CatalogMembership, error) {
	var rows []entities.CatalogMembership
	if err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("source_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *membershipRepository) ListAll(ctx context.Context) ([]entities.CatalogMembership, error) {
	var rows []entities.CatalogMembership
	if err := r.db.WithContext(ctx).Order("source_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
