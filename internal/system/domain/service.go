package domain

import (
	"context"
	"errors"
)

const (
	MinBatch = 1
	MaxBatch = 100

	QRStatusReady   = "ready"
	QRStatusPending = "pending"
)

type CreateSystemsRequest struct {
	LabName         string
	NumberOfSystems *int
	Description     string
}

// UpdateSystemRequest patches only the non-nil fields.
type UpdateSystemRequest struct {
	ID          string
	LabName     *string
	Description *string
}

type ListSystemsRequest struct {
	LabName  string
	Query    string
	QRStatus string
}

type RepairResult struct {
	Attempted int `json:"attempted"`
	Repaired  int `json:"repaired"`
}

// Export is a rendered download.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Service interface {
	List(ctx context.Context, req ListSystemsRequest) ([]System, error)
	Get(ctx context.Context, id string) (System, error)
	Create(ctx context.Context, req CreateSystemsRequest) ([]System, error)
	Update(ctx context.Context, req UpdateSystemRequest) (System, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Labs() []string

	RepairQR(ctx context.Context, id string) (System, error)
	RepairPending(ctx context.Context, limit int) (RepairResult, error)

	ExportCSV(ctx context.Context) (Export, error)
	ExportXLSX(ctx context.Context) (Export, error)
	ExportQRArchive(ctx context.Context, labName string) (Export, error)
	ExportLabels(ctx context.Context, labName string) (Export, error)
}

var (
	ErrInvalidLab         = errors.New("invalid_lab")
	ErrInvalidCount       = errors.New("invalid_count")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidQRStatus    = errors.New("invalid_qr_status")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidIDs         = errors.New("invalid_ids")
	ErrNotFound           = errors.New("not_found")
	ErrConflict           = errors.New("conflict")
	ErrAllocationBusy     = errors.New("allocation_busy")
	ErrArchive            = errors.New("archive_failed")
)

// IsValidationError reports whether err carries any input validation sentinel.
func IsValidationError(err error) bool {
	for _, target := range ValidationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationErrors lists the sentinels surfaced as field errors.
var ValidationErrors = []error{
	ErrInvalidLab,
	ErrInvalidCount,
	ErrInvalidDescription,
	ErrInvalidQRStatus,
	ErrInvalidIDs,
}
