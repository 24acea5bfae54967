package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/smallbiznis/labinventory/internal/system/domain"
)

// CSV writes one row per system under Header.
func CSV(systems []domain.System) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, s := range systems {
		if err := w.Write(row(s)); err != nil {
			return nil, fmt.Errorf("write %s: %w", s.IDCode, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
