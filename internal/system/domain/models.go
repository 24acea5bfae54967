package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// System is one physical computer registered in a lab.
type System struct {
	ID          snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	IDCode      string       `gorm:"column:id_code;type:varchar(20);not null;uniqueIndex" json:"idCode"`
	LabName     string       `gorm:"column:lab_name;type:varchar(10);not null;index" json:"labName"`
	Description string       `gorm:"not null" json:"description"`
	QRImageURL  *string      `gorm:"column:qr_image_url" json:"qrImageUrl"`
	QRPayload   *string      `gorm:"column:qr_payload" json:"qrPayload"`
	SystemURL   *string      `gorm:"column:system_url" json:"systemUrl"`
	CreatedAt   time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updatedAt"`

	// QRAttemptedAt marks the last failed repair; pending records are retried least recently tried first.
	QRAttemptedAt *time.Time `gorm:"column:qr_attempted_at" json:"-"`
}

func (System) TableName() string {
	return "systems"
}

// HasQR reports whether the last enrich succeeded.
func (s System) HasQR() bool {
	return s.QRImageURL != nil && *s.QRImageURL != ""
}

// BlobKey is the object-store key of the QR image.
func (s System) BlobKey() string {
	return s.IDCode + ".png"
}

// CompareIDCodes orders codes by lab prefix, then by numeric suffix, so MCA-999 sorts before MCA-1000.
// Codes without a numeric suffix fall back to plain text order.
func CompareIDCodes(a, b string) int {
	ap, an, aok := splitIDCode(a)
	bp, bn, bok := splitIDCode(b)
	if !aok || !bok || ap != bp {
		return strings.Compare(a, b)
	}
	if an != bn {
		if an < bn {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func splitIDCode(code string) (string, int, bool) {
	i := strings.LastIndex(code, "-")
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return code[:i], n, true
}

// QRFields is the patch written after a successful enrich.
type QRFields struct {
	QRImageURL string
	QRPayload  string
	SystemURL  string
}

type Stats struct {
	TotalSystems     int            `json:"totalSystems"`
	DepartmentCounts map[string]int `json:"departmentCounts"`
	ConfigStats      []ConfigStat   `json:"configStats"`
	LastUpdated      time.Time      `json:"lastUpdated"`
}

// ConfigStat groups systems sharing an identical description.
type ConfigStat struct {
	Configuration string   `json:"configuration"`
	Count         int      `json:"count"`
	Departments   []string `json:"departments"`
}
