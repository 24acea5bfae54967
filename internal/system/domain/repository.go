package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	LabName  string
	Query    string
	QRStatus string
}

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, systems []*System) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*System, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*System, error)
	FindByLab(ctx context.Context, db *gorm.DB, labName string) ([]*System, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*System, error)
	ListIDCodesByPrefix(ctx context.Context, db *gorm.DB, prefix string) ([]string, error)
	FindPendingQR(ctx context.Context, db *gorm.DB, limit int) ([]*System, error)
	UpdateDetails(ctx context.Context, db *gorm.DB, id snowflake.ID, labName, description *string, updatedAt time.Time) (int64, error)
	UpdateQR(ctx context.Context, db *gorm.DB, id snowflake.ID, fields QRFields, updatedAt time.Time) error
	MarkQRAttempted(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	DeleteByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
}
