package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const labelsPerRow = 3

var ErrEmptySheet = errors.New("label sheet has no labels")

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

// GenerateLabels lays labels out three per row, each a QR code over its id code.
func (p *PDFProvider) GenerateLabels(ctx context.Context, sheet LabelSheet) (io.Reader, error) {
	if len(sheet.Labels) == 0 {
		return nil, ErrEmptySheet
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		WithLeftMargin(10).
		WithRightMargin(10).
		WithTopMargin(10).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(8, fmt.Sprintf("%s lab QR labels", sheet.LabName), props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, sheet.GeneratedAt, props.Text{
			Size:  8,
			Align: align.Right,
			Top:   4,
		}),
	)

	for start := 0; start < len(sheet.Labels); start += labelsPerRow {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+labelsPerRow, len(sheet.Labels))
		row := sheet.Labels[start:end]

		qrCols := make([]core.Col, 0, labelsPerRow)
		captionCols := make([]core.Col, 0, labelsPerRow)
		for _, label := range row {
			qrCols = append(qrCols, code.NewQrCol(12/labelsPerRow, label.Payload, props.Rect{
				Center:  true,
				Percent: 90,
			}))
			captionCols = append(captionCols, col.New(12/labelsPerRow).Add(
				text.New(label.IDCode, props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Center}),
				text.New(label.Description, props.Text{Size: 6, Align: align.Center, Top: 5}),
			))
		}
		for len(qrCols) < labelsPerRow {
			qrCols = append(qrCols, col.New(12/labelsPerRow))
			captionCols = append(captionCols, col.New(12/labelsPerRow))
		}

		m.AddRow(50, qrCols...)
		m.AddRow(16, captionCols...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
