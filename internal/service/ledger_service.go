package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// InitialStockComment is recorded on the history entry written by CreateCode.
const InitialStockComment = "Initial stock"

// maxCASAttempts bounds how often Adjust re-reads after losing a
// compare-and-swap to a concurrent writer.
const maxCASAttempts = 5

// Quantities are stored in 32-bit integer columns.
const (
	MaxQuantity = math.MaxInt32
	MinQuantity = math.MinInt32
)

// AdjustParams describes one signed change to a stock code. Quantity is the
// magnitude; the direction comes from Kind.
type AdjustParams struct {
	StockCodeID uuid.UUID
	Quantity    int
	Kind        model.ChangeKind
	Comment     string
	OrderRef    string
	ActorID     *uuid.UUID
}

// AdjustResult is the before/after pair recorded for the change.
type AdjustResult struct {
	StockCodeID uuid.UUID
	Code        string
	StockBefore int
	StockAfter  int
}

// LedgerService owns the running quantity of each stock code and its
// append-only history.
type LedgerService interface {
	CreateCode(ctx context.Context, req dto.CreateStockCodeRequest, actor *uuid.UUID) (*dto.StockCodeResponse, error)
	// Adjust applies the change and appends one history entry atomically.
	Adjust(ctx context.Context, p AdjustParams) (*AdjustResult, error)
	// AdjustTx is Adjust inside a transaction owned by the caller.
	AdjustTx(tx *gorm.DB, p AdjustParams) (*AdjustResult, error)
	DeleteCode(ctx context.Context, id uuid.UUID) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) (*dto.StockCodeResponse, error)
	GetCode(ctx context.Context, id uuid.UUID) (*dto.StockCodeResponse, error)
	GetCodeByCode(ctx context.Context, code string) (*dto.StockCodeResponse, error)
	ListCodes(ctx context.Context, filter dto.StockCodeFilter) (*dto.StockCodeListResponse, error)
	ListHistory(ctx context.Context, filter dto.HistoryFilter) (*dto.HistoryListResponse, error)
	ExportHistory(ctx context.Context, filter dto.HistoryFilter, w io.Writer) error
}

type ledgerService struct {
	codes    repository.StockCodeRepository
	mappings repository.MappingRepository
	history  repository.HistoryRepository
}

func NewLedgerService(
	codes repository.StockCodeRepository,
	mappings repository.MappingRepository,
	history repository.HistoryRepository,
) LedgerService {
	return &ledgerService{codes: codes, mappings: mappings, history: history}
}

// ── CreateCode ───────────────────────────────────────────────────────────────

func (s *ledgerService) CreateCode(ctx context.Context, req dto.CreateStockCodeRequest, actor *uuid.UUID) (*dto.StockCodeResponse, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("code is required: %w", ErrInvalidQuantity)
	}
	if req.InitialQuantity < 0 || req.InitialQuantity > MaxQuantity {
		return nil, fmt.Errorf("initial quantity %d: %w", req.InitialQuantity, ErrInvalidQuantity)
	}

	sc := &model.StockCode{
		Code:            code,
		Name:            strings.TrimSpace(req.Name),
		CurrentQuantity: req.InitialQuantity,
	}
	err := runTx(ctx, s.codes.DB(), func(tx *gorm.DB) error {
		if err := s.codes.CreateTx(tx, sc); err != nil {
			return err
		}
		if req.InitialQuantity == 0 {
			return nil
		}
		return s.history.CreateTx(tx, &model.StockHistoryEntry{
			StockCodeID: sc.ID,
			Code:        sc.Code,
			ChangeKind:  model.ChangeAdd,
			Quantity:    req.InitialQuantity,
			StockBefore: 0,
			StockAfter:  req.InitialQuantity,
			Comment:     InitialStockComment,
			ActorID:     actor,
		})
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, fmt.Errorf("code %q: %w", code, ErrDuplicateCode)
	}
	if err != nil {
		return nil, classify("create stock code", err)
	}

	log.Info().Str("code", sc.Code).Int("initial_quantity", sc.CurrentQuantity).Msg("ledger: stock code created")
	resp := toStockCodeResponse(sc)
	return &resp, nil
}

// ── Adjust ───────────────────────────────────────────────────────────────────

func (s *ledgerService) Adjust(ctx context.Context, p AdjustParams) (*AdjustResult, error) {
	if err := validateAdjust(p); err != nil {
		return nil, err
	}
	var res *AdjustResult
	err := runTx(ctx, s.codes.DB(), func(tx *gorm.DB) error {
		var err error
		res, err = s.adjustTx(tx, p)
		return err
	})
	if err != nil {
		return nil, classify("adjust stock", err)
	}
	return res, nil
}

func (s *ledgerService) AdjustTx(tx *gorm.DB, p AdjustParams) (*AdjustResult, error) {
	if err := validateAdjust(p); err != nil {
		return nil, err
	}
	res, err := s.adjustTx(tx, p)
	if err != nil {
		return nil, classify("adjust stock", err)
	}
	return res, nil
}

// adjustTx locks the row, computes the new quantity and writes it with a
// compare-and-swap. The lock makes a lost swap unlikely; where the dialect
// has no row locks the loop re-reads and tries again.
func (s *ledgerService) adjustTx(tx *gorm.DB, p AdjustParams) (*AdjustResult, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		sc, err := s.codes.LockTx(tx, p.StockCodeID)
		if err != nil {
			return nil, err
		}

		before := sc.CurrentQuantity
		next := int64(before) + int64(p.Kind.Sign())*int64(p.Quantity)
		if next > MaxQuantity || next < MinQuantity {
			return nil, fmt.Errorf("code %s: %d %s %d leaves the storable range: %w",
				sc.Code, before, p.Kind, p.Quantity, ErrInvalidQuantity)
		}
		after := int(next)

		swapped, err := s.codes.SetQuantityTx(tx, sc.ID, before, after)
		if err != nil {
			return nil, err
		}
		if !swapped {
			log.Warn().Str("code", sc.Code).Int("attempt", attempt).Msg("ledger: concurrent update, retrying")
			continue
		}

		entry := &model.StockHistoryEntry{
			StockCodeID: sc.ID,
			Code:        sc.Code,
			ChangeKind:  p.Kind,
			Quantity:    p.Quantity,
			StockBefore: before,
			StockAfter:  after,
			Comment:     p.Comment,
			ActorID:     p.ActorID,
		}
		if p.OrderRef != "" {
			ref := p.OrderRef
			entry.OrderRef = &ref
		}
		if err := s.history.CreateTx(tx, entry); err != nil {
			return nil, err
		}

		return &AdjustResult{StockCodeID: sc.ID, Code: sc.Code, StockBefore: before, StockAfter: after}, nil
	}
	return nil, errConcurrentUpdate
}

func validateAdjust(p AdjustParams) error {
	if p.Quantity <= 0 || p.Quantity > MaxQuantity {
		return fmt.Errorf("magnitude %d: %w", p.Quantity, ErrInvalidQuantity)
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("change kind %q: %w", p.Kind, ErrInvalidQuantity)
	}
	if p.StockCodeID == uuid.Nil {
		return fmt.Errorf("stock code id is required: %w", ErrInvalidReference)
	}
	return nil
}

// ── Maintenance ──────────────────────────────────────────────────────────────

// DeleteCode removes the code and its mappings. History and tracking rows
// keep their code snapshot and are not touched.
func (s *ledgerService) DeleteCode(ctx context.Context, id uuid.UUID) error {
	var code string
	err := runTx(ctx, s.codes.DB(), func(tx *gorm.DB) error {
		sc, err := s.codes.LockTx(tx, id)
		if err != nil {
			return err
		}
		code = sc.Code
		if err := s.mappings.DeleteByStockCodeTx(tx, id); err != nil {
			return err
		}
		return s.codes.DeleteTx(tx, id)
	})
	if err != nil {
		return classify("delete stock code", err)
	}
	log.Info().Str("code", code).Msg("ledger: stock code deleted")
	return nil
}

func (s *ledgerService) UpdateName(ctx context.Context, id uuid.UUID, name string) (*dto.StockCodeResponse, error) {
	if err := s.codes.UpdateName(ctx, id, strings.TrimSpace(name)); err != nil {
		return nil, classify("update stock code", err)
	}
	return s.GetCode(ctx, id)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *ledgerService) GetCode(ctx context.Context, id uuid.UUID) (*dto.StockCodeResponse, error) {
	sc, err := s.codes.FindByID(ctx, id)
	if err != nil {
		return nil, classify("get stock code", err)
	}
	mappings, err := s.mappings.ListByStockCode(ctx, id)
	if err != nil {
		return nil, classify("get stock code", err)
	}
	resp := toStockCodeResponse(sc)
	resp.MappingCount = len(mappings)
	return &resp, nil
}

// GetCodeByCode looks a stock code up by its business code.
func (s *ledgerService) GetCodeByCode(ctx context.Context, code string) (*dto.StockCodeResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("code is required: %w", ErrInvalidQuantity)
	}
	sc, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return nil, classify("get stock code", err)
	}
	return s.GetCode(ctx, sc.ID)
}

func (s *ledgerService) ListCodes(ctx context.Context, filter dto.StockCodeFilter) (*dto.StockCodeListResponse, error) {
	codes, total, err := s.codes.List(ctx, repository.StockCodeFilter{
		Search: strings.TrimSpace(filter.Search),
		SortBy: filter.SortBy,
		Order:  filter.Order,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, persistence("list stock codes", err)
	}

	data := make([]dto.StockCodeResponse, len(codes))
	for i := range codes {
		data[i] = toStockCodeResponse(&codes[i])
	}
	page, limit := pageOf(filter.Page, filter.Limit)
	return &dto.StockCodeListResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func (s *ledgerService) ListHistory(ctx context.Context, filter dto.HistoryFilter) (*dto.HistoryListResponse, error) {
	rf, err := historyFilter(filter)
	if err != nil {
		return nil, err
	}
	entries, total, err := s.history.List(ctx, rf)
	if err != nil {
		return nil, persistence("list history", err)
	}

	data := make([]dto.HistoryEntryResponse, len(entries))
	for i := range entries {
		data[i] = toHistoryResponse(&entries[i])
	}
	page, limit := pageOf(filter.Page, filter.Limit)
	return &dto.HistoryListResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// historyFilter converts the inclusive YYYY-MM-DD range into a half-open
// [from, to+1day) interval in UTC.
func historyFilter(f dto.HistoryFilter) (repository.HistoryFilter, error) {
	rf := repository.HistoryFilter{
		Code:     strings.TrimSpace(f.Code),
		Kind:     f.Kind,
		OrderRef: f.OrderRef,
		Page:     f.Page,
		Limit:    f.Limit,
	}
	if f.StockCodeID != "" {
		id, err := uuid.Parse(f.StockCodeID)
		if err != nil {
			return rf, fmt.Errorf("stock_code_id: %w", ErrInvalidReference)
		}
		rf.StockCodeID = &id
	}
	if f.DateFrom != "" {
		from, err := time.Parse(time.DateOnly, f.DateFrom)
		if err != nil {
			return rf, fmt.Errorf("date_from %q: %w", f.DateFrom, ErrInvalidQuantity)
		}
		rf.DateFrom = &from
	}
	if f.DateTo != "" {
		to, err := time.Parse(time.DateOnly, f.DateTo)
		if err != nil {
			return rf, fmt.Errorf("date_to %q: %w", f.DateTo, ErrInvalidQuantity)
		}
		to = to.AddDate(0, 0, 1)
		rf.DateTo = &to
	}
	return rf, nil
}

// ── Mappers ──────────────────────────────────────────────────────────────────

func toStockCodeResponse(sc *model.StockCode) dto.StockCodeResponse {
	return dto.StockCodeResponse{
		ID:              sc.ID.String(),
		Code:            sc.Code,
		Name:            sc.Name,
		CurrentQuantity: sc.CurrentQuantity,
		CreatedAt:       sc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       sc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toHistoryResponse(e *model.StockHistoryEntry) dto.HistoryEntryResponse {
	r := dto.HistoryEntryResponse{
		ID:          e.ID.String(),
		StockCodeID: e.StockCodeID.String(),
		Code:        e.Code,
		ChangeKind:  string(e.ChangeKind),
		Quantity:    e.Quantity,
		StockBefore: e.StockBefore,
		StockAfter:  e.StockAfter,
		OrderRef:    e.OrderRef,
		Comment:     e.Comment,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.ActorID != nil {
		a := e.ActorID.String()
		r.ActorID = &a
	}
	return r
}

func pageOf(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	return int(math.Ceil(float64(total) / float64(limit)))
}

func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
