package export

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/h2non/filetype"
)

// ArchiveEntry is one QR image destined for the lab folder.
type ArchiveEntry struct {
	IDCode string
	Data   []byte
}

// Archive zips entries under "<lab>/<idCode>.png". Entries whose bytes are not PNG are skipped and returned.
func Archive(labName string, entries []ArchiveEntry) ([]byte, []string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	folder := labName + "/"
	if _, err := zw.Create(folder); err != nil {
		return nil, nil, fmt.Errorf("create folder %s: %w", folder, err)
	}

	var skipped []string
	for _, e := range entries {
		if !filetype.Is(e.Data, "png") {
			skipped = append(skipped, e.IDCode)
			continue
		}
		w, err := zw.Create(folder + e.IDCode + ".png")
		if err != nil {
			return nil, nil, fmt.Errorf("add %s: %w", e.IDCode, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, nil, fmt.Errorf("write %s: %w", e.IDCode, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), skipped, nil
}
