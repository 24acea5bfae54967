// Package export renders inventory records into downloadable files.
package export

import (
	"strconv"
	"time"

	"github.com/smallbiznis/labinventory/internal/system/domain"
)

// Header is shared by the CSV and XLSX exports.
var Header = []string{"System ID", "Lab Name", "Configuration", "QR Image URL", "System URL", "Created At"}

const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func row(s domain.System) []string {
	return []string{
		s.IDCode,
		s.LabName,
		s.Description,
		deref(s.QRImageURL),
		deref(s.SystemURL),
		s.CreatedAt.UTC().Format(TimestampLayout),
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func CSVFileName(now time.Time) string {
	return "systems-export-" + strconv.FormatInt(now.UnixMilli(), 10) + ".csv"
}

func XLSXFileName(now time.Time) string {
	return "systems-export-" + strconv.FormatInt(now.UnixMilli(), 10) + ".xlsx"
}

func ArchiveFileName(labName string) string {
	return labName + "-qr-codes.zip"
}

func LabelsFileName(labName string) string {
	return labName + "-qr-labels.pdf"
}
