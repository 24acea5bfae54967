package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/labinventory/internal/system/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, systems []*domain.System) error {
	if len(systems) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&systems).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.System, error) {
	var systems []*domain.System
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&systems).Error
	if err != nil {
		return nil, err
	}
	if len(systems) == 0 {
		return nil, nil
	}
	return systems[0], nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.System, error) {
	var systems []*domain.System
	if len(ids) == 0 {
		return systems, nil
	}
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id_code asc").
		Find(&systems).Error
	if err != nil {
		return nil, err
	}
	sortByIDCode(systems)
	return systems, nil
}

func (r *repo) FindByLab(ctx context.Context, db *gorm.DB, labName string) ([]*domain.System, error) {
	var systems []*domain.System
	err := db.WithContext(ctx).
		Where("lab_name = ?", labName).
		Order("id_code asc").
		Find(&systems).Error
	if err != nil {
		return nil, err
	}
	sortByIDCode(systems)
	return systems, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.System, error) {
	var systems []*domain.System
	stmt := db.WithContext(ctx).Model(&domain.System{})
	if filter.LabName != "" {
		stmt = stmt.Where("lab_name = ?", filter.LabName)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		stmt = stmt.Where("(LOWER(id_code) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", pattern, pattern)
	}
	switch filter.QRStatus {
	case domain.QRStatusReady:
		stmt = stmt.Where("qr_image_url IS NOT NULL")
	case domain.QRStatusPending:
		stmt = stmt.Where("qr_image_url IS NULL")
	}
	if err := stmt.Order("id_code asc").Find(&systems).Error; err != nil {
		return nil, err
	}
	sortByIDCode(systems)
	return systems, nil
}

// ListIDCodesByPrefix returns every id_code starting with prefix, whatever lab the record is in now.
func (r *repo) ListIDCodesByPrefix(ctx context.Context, db *gorm.DB, prefix string) ([]string, error) {
	var codes []string
	err := db.WithContext(ctx).
		Model(&domain.System{}).
		Where("id_code LIKE ? ESCAPE '!'", escapeLike(prefix)+"%").
		Pluck("id_code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// FindPendingQR returns records without a QR image. Records never attempted come first by creation time,
// then retried records, least recently attempted first.
func (r *repo) FindPendingQR(ctx context.Context, db *gorm.DB, limit int) ([]*domain.System, error) {
	var systems []*domain.System
	err := db.WithContext(ctx).
		Where("qr_image_url IS NULL").
		Order("CASE WHEN qr_attempted_at IS NULL THEN 0 ELSE 1 END asc").
		Order("qr_attempted_at asc, created_at asc, id_code asc").
		Limit(limit).
		Find(&systems).Error
	if err != nil {
		return nil, err
	}
	return systems, nil
}

func (r *repo) UpdateDetails(ctx context.Context, db *gorm.DB, id snowflake.ID, labName, description *string, updatedAt time.Time) (int64, error) {
	updates := map[string]any{"updated_at": updatedAt}
	if labName != nil {
		updates["lab_name"] = *labName
	}
	if description != nil {
		updates["description"] = *description
	}
	res := db.WithContext(ctx).
		Model(&domain.System{}).
		Where("id = ?", id).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repo) UpdateQR(ctx context.Context, db *gorm.DB, id snowflake.ID, fields domain.QRFields, updatedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.System{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"qr_image_url":    fields.QRImageURL,
			"qr_payload":      fields.QRPayload,
			"system_url":      fields.SystemURL,
			"qr_attempted_at": nil,
			"updated_at":      updatedAt,
		}).Error
}

// MarkQRAttempted moves still-pending records to the back of the repair queue.
func (r *repo) MarkQRAttempted(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.System{}).
		Where("id IN ? AND qr_image_url IS NULL", ids).
		UpdateColumn("qr_attempted_at", at).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.System{})
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.System{})
	return res.RowsAffected, res.Error
}

// sortByIDCode keeps each lab's codes in numeric order past 999.
func sortByIDCode(systems []*domain.System) {
	slices.SortStableFunc(systems, func(a, b *domain.System) int {
		return domain.CompareIDCodes(a.IDCode, b.IDCode)
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
