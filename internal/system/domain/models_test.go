package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareIDCodes(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"MCA-001", "MCA-002", -1},
		{"MCA-999", "MCA-1000", -1},
		{"MCA-1000", "MCA-999", 1},
		{"MCA-010", "MCA-010", 0},
		{"BCA-999", "MCA-001", -1},
		{"MCA-999", "MCAX-001", -1},
		{"MCA-abc", "MCA-001", 1},
	}
	for _, tc := range cases {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, CompareIDCodes(tc.a, tc.b))
		})
	}
}
