package pdf

import (
	"context"
	"io"
)

// Label is one printable QR tag.
type Label struct {
	IDCode      string
	Description string
	Payload     string
}

type LabelSheet struct {
	LabName     string
	GeneratedAt string
	Labels      []Label
}

type Provider interface {
	GenerateLabels(ctx context.Context, sheet LabelSheet) (io.Reader, error)
}
