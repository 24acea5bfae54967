package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/labinventory/internal/system/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func strPtr(s string) *string { return &s }

func sampleSystems() []domain.System {
	created := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	return []domain.System{
		{
			IDCode:      "MCA-001",
			LabName:     "MCA",
			Description: `6GB RAM, "fast" HDD`,
			QRImageURL:  strPtr("https://cdn/MCA-001.png"),
			SystemURL:   strPtr("https://inv/system/1"),
			CreatedAt:   created,
		},
		{IDCode: "MCA-002", LabName: "MCA", Description: "plain", CreatedAt: created},
	}
}

func TestCSVEscapesQuotes(t *testing.T) {
	data, err := CSV(sampleSystems())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"6GB RAM, ""fast"" HDD"`)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"MCA-001", "MCA", `6GB RAM, "fast" HDD`, "https://cdn/MCA-001.png", "https://inv/system/1", "2026-03-04T05:06:07.890Z"}, records[1])
	assert.Equal(t, "", records[2][3])
}

func TestXLSX(t *testing.T) {
	data, err := XLSX(sampleSystems())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, `6GB RAM, "fast" HDD`, rows[1][2])
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestArchive(t *testing.T) {
	img := pngBytes(t)
	data, skipped, err := Archive("MCA", []ArchiveEntry{
		{IDCode: "MCA-001", Data: img},
		{IDCode: "MCA-002", Data: []byte("<html>not found</html>")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"MCA-002"}, skipped)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"MCA/", "MCA/MCA-001.png"}, names)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestFileNames(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	assert.Equal(t, "systems-export-1767225600123.csv", CSVFileName(now))
	assert.True(t, strings.HasSuffix(XLSXFileName(now), ".xlsx"))
	assert.Equal(t, "MCA-qr-codes.zip", ArchiveFileName("MCA"))
	assert.Equal(t, "MCA-qr-labels.pdf", LabelsFileName("MCA"))
}
