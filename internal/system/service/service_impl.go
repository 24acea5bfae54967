package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/labinventory/internal/blobstore"
	"github.com/smallbiznis/labinventory/internal/clock"
	"github.com/smallbiznis/labinventory/internal/config"
	"github.com/smallbiznis/labinventory/internal/lock"
	"github.com/smallbiznis/labinventory/internal/observability/logger"
	"github.com/smallbiznis/labinventory/internal/observability/metrics"
	"github.com/smallbiznis/labinventory/internal/observability/tracing"
	"github.com/smallbiznis/labinventory/internal/providers/pdf"
	"github.com/smallbiznis/labinventory/internal/qrcode"
	"github.com/smallbiznis/labinventory/internal/system/domain"
	pkgdb "github.com/smallbiznis/labinventory/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const tracerName = "system.service"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Config  config.Config
	Labs    *config.LabsHolder
	Locker  lock.Locker
	Store   blobstore.Store
	Encoder *qrcode.Encoder
	PDF     pdf.Provider
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	clock       clock.Clock
	labs        *config.LabsHolder
	locker      lock.Locker
	store       blobstore.Store
	encoder     *qrcode.Encoder
	pdf         pdf.Provider
	metrics     *metrics.Metrics
	baseURL     string
	defaultDesc string
	workers     int
}

func New(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	defaultDesc := strings.TrimSpace(p.Config.DefaultDescription)
	if defaultDesc == "" {
		defaultDesc = config.DefaultDescription
	}
	workers := p.Config.QR.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("system.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		clock:       p.Clock,
		labs:        p.Labs,
		locker:      p.Locker,
		store:       p.Store,
		encoder:     p.Encoder,
		pdf:         p.PDF,
		metrics:     p.Metrics,
		baseURL:     strings.TrimRight(p.Config.BaseURL, "/"),
		defaultDesc: defaultDesc,
		workers:     workers,
	}
}

func (s *Service) Labs() []string {
	codes := s.labs.Get().Codes
	return append([]string(nil), codes...)
}

func (s *Service) List(ctx context.Context, req domain.ListSystemsRequest) ([]domain.System, error) {
	filter := domain.ListFilter{
		LabName:  strings.TrimSpace(req.LabName),
		Query:    strings.TrimSpace(req.Query),
		QRStatus: strings.ToLower(strings.TrimSpace(req.QRStatus)),
	}

	var errs []error
	if filter.LabName != "" && !s.labs.Get().Contains(filter.LabName) {
		errs = append(errs, domain.ErrInvalidLab)
	}
	switch filter.QRStatus {
	case "", domain.QRStatusReady, domain.QRStatusPending:
	default:
		errs = append(errs, domain.ErrInvalidQRStatus)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	return values(items), nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.System, error) {
	systemID, err := parseID(id)
	if err != nil {
		return domain.System{}, err
	}
	item, err := s.find(ctx, systemID)
	if err != nil {
		return domain.System{}, err
	}
	return *item, nil
}

// Create allocates codes and inserts bare records under the lab lock, then enriches each record with its QR.
func (s *Service) Create(ctx context.Context, req domain.CreateSystemsRequest) (_ []domain.System, err error) {
	lab := strings.TrimSpace(req.LabName)
	count := 1
	if req.NumberOfSystems != nil {
		count = *req.NumberOfSystems
	}
	description := strings.TrimSpace(req.Description)

	var errs []error
	if !s.labs.Get().Contains(lab) {
		errs = append(errs, domain.ErrInvalidLab)
	}
	if count < domain.MinBatch || count > domain.MaxBatch {
		errs = append(errs, domain.ErrInvalidCount)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if description == "" {
		description = s.defaultDesc
	}

	ctx, span := tracing.Start(ctx, tracerName, "system.create",
		attribute.String("lab", lab),
		attribute.Int("count", count),
	)
	defer func() { tracing.EndSpan(span, err) }()

	created, err := s.allocate(ctx, lab, count, description)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordProvisioned(ctx, lab, len(created))

	s.enrichAll(ctx, created, "create")

	ids := make([]snowflake.ID, 0, len(created))
	for _, sys := range created {
		ids = append(ids, sys.ID)
	}
	items, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, fmt.Errorf("reload created systems: %w", err)
	}
	return inOrder(ids, items), nil
}

// inOrder returns items in the order of ids; ids with no matching item are dropped.
func inOrder(ids []snowflake.ID, items []*domain.System) []domain.System {
	byID := make(map[snowflake.ID]*domain.System, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]domain.System, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}

func (s *Service) allocate(ctx context.Context, lab string, count int, description string) ([]*domain.System, error) {
	unlock, err := s.locker.Acquire(ctx, lockKey(lab))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return nil, domain.ErrAllocationBusy
		}
		return nil, fmt.Errorf("acquire allocation lock: %w", err)
	}
	defer unlock()

	var created []*domain.System
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.ListIDCodesByPrefix(ctx, tx, lab+"-")
		if err != nil {
			return fmt.Errorf("read existing codes: %w", err)
		}

		now := s.clock.Now()
		codes := NextIDCodes(lab, existing, count)
		created = make([]*domain.System, 0, count)
		for _, code := range codes {
			created = append(created, &domain.System{
				ID:          s.genID.Generate(),
				IDCode:      code,
				LabName:     lab,
				Description: description,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return s.repo.InsertBatch(ctx, tx, created)
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
		return nil, fmt.Errorf("insert systems: %w", err)
	}

	logger.WithContext(ctx, s.log).Info("systems allocated",
		zap.String("lab", lab),
		zap.Int("count", len(created)),
		zap.String("first", created[0].IDCode),
		zap.String("last", created[len(created)-1].IDCode),
	)
	return created, nil
}

// enrichAll runs enrich for every record with bounded parallelism and returns the ids that failed.
func (s *Service) enrichAll(ctx context.Context, systems []*domain.System, operation string) []snowflake.ID {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	failed := make([]bool, len(systems))
	for i, sys := range systems {
		g.Go(func() error {
			failed[i] = s.enrich(gctx, sys, operation) != nil
			return nil
		})
	}
	_ = g.Wait()

	var ids []snowflake.ID
	for i, f := range failed {
		if f {
			ids = append(ids, systems[i].ID)
		}
	}
	return ids
}

// enrich renders the QR for sys, uploads it under <idCode>.png and patches the record.
// Errors are logged and counted, the caller decides whether they matter.
func (s *Service) enrich(ctx context.Context, sys *domain.System, operation string) (err error) {
	defer func() {
		s.metrics.RecordQRGeneration(ctx, operation, err)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("qr generation failed",
				zap.String("operation", operation),
				zap.String("id", sys.ID.String()),
				zap.String("id_code", sys.IDCode),
				zap.String("lab", sys.LabName),
				zap.Error(err),
			)
		}
	}()

	payload := qrcode.BuildPayload(s.baseURL, sys.ID.String(), sys.IDCode, sys.LabName, sys.Description)
	data, err := payload.Marshal()
	if err != nil {
		return err
	}
	image, err := s.encoder.Render(string(data))
	if err != nil {
		return err
	}
	url, err := s.store.Upload(ctx, sys.BlobKey(), image, qrcode.ContentType)
	if err != nil {
		return fmt.Errorf("upload qr: %w", err)
	}

	fields := domain.QRFields{
		QRImageURL: url,
		QRPayload:  string(data),
		SystemURL:  payload.SystemURL,
	}
	if err := s.repo.UpdateQR(ctx, s.db, sys.ID, fields, s.clock.Now()); err != nil {
		return fmt.Errorf("store qr fields: %w", err)
	}
	return nil
}

// Update patches lab and description, then regenerates the QR from the patched record.
// A failed regeneration still returns the patched record.
func (s *Service) Update(ctx context.Context, req domain.UpdateSystemRequest) (_ domain.System, err error) {
	systemID, err := parseID(req.ID)
	if err != nil {
		return domain.System{}, err
	}

	var lab, description *string
	var errs []error
	if req.LabName != nil {
		v := strings.TrimSpace(*req.LabName)
		if !s.labs.Get().Contains(v) {
			errs = append(errs, domain.ErrInvalidLab)
		}
		lab = &v
	}
	if req.Description != nil {
		v := strings.TrimSpace(*req.Description)
		if v == "" {
			errs = append(errs, domain.ErrInvalidDescription)
		}
		description = &v
	}
	if len(errs) > 0 {
		return domain.System{}, errors.Join(errs...)
	}

	ctx, span := tracing.Start(ctx, tracerName, "system.update", attribute.String("id", systemID.String()))
	defer func() { tracing.EndSpan(span, err) }()

	if _, err := s.find(ctx, systemID); err != nil {
		return domain.System{}, err
	}

	if lab != nil || description != nil {
		rows, err := s.repo.UpdateDetails(ctx, s.db, systemID, lab, description, s.clock.Now())
		if err != nil {
			return domain.System{}, fmt.Errorf("update system: %w", err)
		}
		if rows == 0 {
			return domain.System{}, domain.ErrNotFound
		}
	}

	return s.regenerate(ctx, systemID, "update")
}

func (s *Service) RepairQR(ctx context.Context, id string) (_ domain.System, err error) {
	systemID, err := parseID(id)
	if err != nil {
		return domain.System{}, err
	}
	ctx, span := tracing.Start(ctx, tracerName, "system.repair_qr", attribute.String("id", systemID.String()))
	defer func() { tracing.EndSpan(span, err) }()

	return s.regenerate(ctx, systemID, "repair")
}

// regenerate reloads the record, enriches it and returns the freshest state available.
func (s *Service) regenerate(ctx context.Context, id snowflake.ID, operation string) (domain.System, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return domain.System{}, err
	}
	if err := s.enrich(ctx, current, operation); err != nil {
		return *current, nil
	}
	final, err := s.find(ctx, id)
	if err != nil {
		return *current, nil
	}
	return *final, nil
}

// RepairPending enriches up to limit records that never received a QR, least recently attempted first.
// Records that fail again move behind the rest of the queue so they cannot starve it.
func (s *Service) RepairPending(ctx context.Context, limit int) (_ domain.RepairResult, err error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, span := tracing.Start(ctx, tracerName, "system.repair_pending", attribute.Int("limit", limit))
	defer func() { tracing.EndSpan(span, err) }()

	pending, err := s.repo.FindPendingQR(ctx, s.db, limit)
	if err != nil {
		return domain.RepairResult{}, fmt.Errorf("find pending qr: %w", err)
	}
	if len(pending) == 0 {
		return domain.RepairResult{}, nil
	}

	failed := s.enrichAll(ctx, pending, "repair")
	if err := s.repo.MarkQRAttempted(ctx, s.db, failed, s.clock.Now()); err != nil {
		logger.WithContext(ctx, s.log).Warn("mark qr repair attempts failed",
			zap.Int("count", len(failed)),
			zap.Error(err),
		)
	}

	repaired := len(pending) - len(failed)
	logger.WithContext(ctx, s.log).Info("qr repair pass finished",
		zap.Int("attempted", len(pending)),
		zap.Int("repaired", repaired),
	)
	return domain.RepairResult{Attempted: len(pending), Repaired: repaired}, nil
}

// Delete removes the QR blob best-effort before removing the record.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	systemID, err := parseID(id)
	if err != nil {
		return err
	}
	ctx, span := tracing.Start(ctx, tracerName, "system.delete", attribute.String("id", systemID.String()))
	defer func() { tracing.EndSpan(span, err) }()

	item, err := s.find(ctx, systemID)
	if err != nil {
		return err
	}

	s.deleteBlob(ctx, item, "delete")

	rows, err := s.repo.Delete(ctx, s.db, systemID)
	if err != nil {
		return fmt.Errorf("delete system: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// BulkDelete removes every listed record that exists and returns how many rows went away.
// Blank and malformed ids are skipped.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (_ int, err error) {
	parsed := make([]snowflake.ID, 0, len(ids))
	blank := 0
	seen := make(map[snowflake.ID]struct{}, len(ids))
	for _, raw := range ids {
		if strings.TrimSpace(raw) == "" {
			blank++
			continue
		}
		id, err := parseID(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		parsed = append(parsed, id)
	}
	if len(ids) == 0 || blank == len(ids) {
		return 0, domain.ErrInvalidIDs
	}
	if len(parsed) == 0 {
		return 0, nil
	}

	ctx, span := tracing.Start(ctx, tracerName, "system.bulk_delete", attribute.Int("requested", len(ids)))
	defer func() { tracing.EndSpan(span, err) }()

	items, err := s.repo.FindByIDs(ctx, s.db, parsed)
	if err != nil {
		return 0, fmt.Errorf("load systems: %w", err)
	}
	for _, item := range items {
		s.deleteBlob(ctx, item, "bulk_delete")
	}

	rows, err := s.repo.DeleteByIDs(ctx, s.db, parsed)
	if err != nil {
		return 0, fmt.Errorf("delete systems: %w", err)
	}
	return int(rows), nil
}

func (s *Service) deleteBlob(ctx context.Context, item *domain.System, operation string) {
	if item.IDCode == "" {
		return
	}
	if err := s.store.Delete(ctx, item.BlobKey()); err != nil {
		s.metrics.RecordBlobDeleteFailure(ctx, operation)
		logger.WithContext(ctx, s.log).Warn("qr blob delete failed",
			zap.String("operation", operation),
			zap.String("id", item.ID.String()),
			zap.String("id_code", item.IDCode),
			zap.String("lab", item.LabName),
			zap.Error(err),
		)
	}
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*domain.System, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

// parseID treats a malformed id as a reference to nothing.
func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %w", domain.ErrNotFound, domain.ErrInvalidID)
	}
	return id, nil
}

func values(items []*domain.System) []domain.System {
	out := make([]domain.System, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
