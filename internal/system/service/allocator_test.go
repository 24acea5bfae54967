package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIDCodes(t *testing.T) {
	tests := []struct {
		name     string
		lab      string
		existing []string
		n        int
		want     []string
	}{
		{name: "empty lab", lab: "MCA", n: 3, want: []string{"MCA-001", "MCA-002", "MCA-003"}},
		{name: "continues after highest", lab: "MCA", existing: []string{"MCA-001", "MCA-007", "MCA-003"}, n: 2, want: []string{"MCA-008", "MCA-009"}},
		{name: "ignores foreign and malformed codes", lab: "PCS", existing: []string{"PCSX-050", "PCS-abc", "PCS-", "PCS-000", "PCS-004"}, n: 1, want: []string{"PCS-005"}},
		{name: "grows past three digits", lab: "UIT", existing: []string{"UIT-999"}, n: 2, want: []string{"UIT-1000", "UIT-1001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextIDCodes(tt.lab, tt.existing, tt.n))
		})
	}
}

func TestFormatIDCode(t *testing.T) {
	assert.Equal(t, "BCA-042", FormatIDCode("BCA", 42))
	assert.Equal(t, "BCA-1234", FormatIDCode("BCA", 1234))
}
