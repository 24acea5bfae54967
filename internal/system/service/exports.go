package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/labinventory/internal/observability/logger"
	"github.com/smallbiznis/labinventory/internal/observability/tracing"
	"github.com/smallbiznis/labinventory/internal/providers/pdf"
	"github.com/smallbiznis/labinventory/internal/system/domain"
	"github.com/smallbiznis/labinventory/internal/system/export"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeZIP  = "application/zip"
	contentTypePDF  = "application/pdf"
)

func (s *Service) ExportCSV(ctx context.Context) (domain.Export, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{})
	if err != nil {
		return domain.Export{}, fmt.Errorf("list systems: %w", err)
	}
	data, err := export.CSV(values(items))
	if err != nil {
		return domain.Export{}, err
	}
	return domain.Export{
		FileName:    export.CSVFileName(s.clock.Now()),
		ContentType: contentTypeCSV,
		Data:        data,
	}, nil
}

func (s *Service) ExportXLSX(ctx context.Context) (domain.Export, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{})
	if err != nil {
		return domain.Export{}, fmt.Errorf("list systems: %w", err)
	}
	data, err := export.XLSX(values(items))
	if err != nil {
		return domain.Export{}, err
	}
	return domain.Export{
		FileName:    export.XLSXFileName(s.clock.Now()),
		ContentType: contentTypeXLSX,
		Data:        data,
	}, nil
}

// ExportQRArchive bundles the lab's QR images. Images that cannot be fetched are skipped.
func (s *Service) ExportQRArchive(ctx context.Context, labName string) (_ domain.Export, err error) {
	lab := strings.TrimSpace(labName)
	ctx, span := tracing.Start(ctx, tracerName, "system.export_qr_archive", attribute.String("lab", lab))
	defer func() { tracing.EndSpan(span, err) }()

	items, err := s.repo.FindByLab(ctx, s.db, lab)
	if err != nil {
		return domain.Export{}, fmt.Errorf("list lab systems: %w", err)
	}
	if len(items) == 0 {
		return domain.Export{}, domain.ErrNotFound
	}

	entries := s.fetchImages(ctx, items)
	data, skipped, err := export.Archive(lab, entries)
	if err != nil {
		return domain.Export{}, fmt.Errorf("%w: %w", domain.ErrArchive, err)
	}
	if len(skipped) > 0 {
		logger.WithContext(ctx, s.log).Warn("non png qr images skipped",
			zap.String("lab", lab),
			zap.Strings("id_codes", skipped),
		)
	}

	return domain.Export{
		FileName:    export.ArchiveFileName(lab),
		ContentType: contentTypeZIP,
		Data:        data,
	}, nil
}

// fetchImages downloads QR images in parallel and keeps idCode order.
func (s *Service) fetchImages(ctx context.Context, items []*domain.System) []export.ArchiveEntry {
	fetched := make([][]byte, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, item := range items {
		if !item.HasQR() {
			continue
		}
		g.Go(func() error {
			data, err := s.store.Fetch(gctx, *item.QRImageURL)
			if err != nil {
				logger.WithContext(gctx, s.log).Warn("qr image fetch failed",
					zap.String("id_code", item.IDCode),
					zap.String("url", *item.QRImageURL),
					zap.Error(err),
				)
				return nil
			}
			fetched[i] = data
			return nil
		})
	}
	_ = g.Wait()

	entries := make([]export.ArchiveEntry, 0, len(items))
	for i, item := range items {
		if fetched[i] == nil {
			continue
		}
		entries = append(entries, export.ArchiveEntry{IDCode: item.IDCode, Data: fetched[i]})
	}
	return entries
}

// ExportLabels renders a printable PDF sheet for every system in the lab that carries a QR payload.
func (s *Service) ExportLabels(ctx context.Context, labName string) (_ domain.Export, err error) {
	lab := strings.TrimSpace(labName)
	ctx, span := tracing.Start(ctx, tracerName, "system.export_labels", attribute.String("lab", lab))
	defer func() { tracing.EndSpan(span, err) }()

	items, err := s.repo.FindByLab(ctx, s.db, lab)
	if err != nil {
		return domain.Export{}, fmt.Errorf("list lab systems: %w", err)
	}

	sheet := pdf.LabelSheet{
		LabName:     lab,
		GeneratedAt: s.clock.Now().UTC().Format(export.TimestampLayout),
	}
	for _, item := range items {
		if item.QRPayload == nil || *item.QRPayload == "" {
			continue
		}
		sheet.Labels = append(sheet.Labels, pdf.Label{
			IDCode:      item.IDCode,
			Description: item.Description,
			Payload:     *item.QRPayload,
		})
	}
	if len(sheet.Labels) == 0 {
		return domain.Export{}, domain.ErrNotFound
	}

	r, err := s.pdf.GenerateLabels(ctx, sheet)
	if err != nil {
		return domain.Export{}, fmt.Errorf("render labels: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Export{}, fmt.Errorf("read labels: %w", err)
	}

	return domain.Export{
		FileName:    export.LabelsFileName(lab),
		ContentType: contentTypePDF,
		Data:        data,
	}, nil
}
