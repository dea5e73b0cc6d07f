package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/infra"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CatalogLookup resolves catalog labels. *infra.CatalogClient implements it.
type CatalogLookup interface {
	Lookup(ctx context.Context, productRef, variantRef int64) (*infra.CatalogItem, error)
}

// MappingService links stock codes to catalog products and variants and
// resolves order lines back to a stock code.
type MappingService interface {
	AddMapping(ctx context.Context, stockCodeID uuid.UUID, req dto.AddMappingRequest) (*dto.AddMappingResponse, error)
	RemoveMapping(ctx context.Context, mappingID uuid.UUID) error
	ListMappings(ctx context.Context, stockCodeID uuid.UUID) ([]dto.MappingResponse, error)

	// Resolve* return (nil, nil) when nothing is mapped.
	ResolveByVariant(ctx context.Context, variantRef int64) (*model.StockCode, error)
	ResolveByProduct(ctx context.Context, productRef int64) (*model.StockCode, error)
	// Resolve prefers a variant-level mapping and falls back to a
	// product-level one.
	Resolve(ctx context.Context, productRef, variantRef int64) (*model.StockCode, error)

	CodeForVariant(ctx context.Context, variantRef int64) (*dto.VariantCodeResponse, error)
}

type mappingService struct {
	codes    repository.StockCodeRepository
	mappings repository.MappingRepository
	catalog  CatalogLookup // optional
}

// NewMappingService accepts a nil catalog; listings are then not enriched.
func NewMappingService(codes repository.StockCodeRepository, mappings repository.MappingRepository, catalog CatalogLookup) MappingService {
	return &mappingService{codes: codes, mappings: mappings, catalog: catalog}
}

func (s *mappingService) AddMapping(ctx context.Context, stockCodeID uuid.UUID, req dto.AddMappingRequest) (*dto.AddMappingResponse, error) {
	if req.ProductRef <= 0 {
		return nil, fmt.Errorf("product_ref is required: %w", ErrInvalidQuantity)
	}
	if req.VariantRef < 0 {
		return nil, fmt.Errorf("variant_ref %d: %w", req.VariantRef, ErrInvalidQuantity)
	}
	sc, err := s.codes.FindByID(ctx, stockCodeID)
	if err != nil {
		return nil, classify("add mapping", err)
	}

	m, created, err := s.mappings.Upsert(ctx, &model.Mapping{
		StockCodeID: sc.ID,
		ProductRef:  req.ProductRef,
		VariantRef:  req.VariantRef,
	})
	if err != nil {
		return nil, classify("add mapping", err)
	}

	if created {
		s.warnOnOverlap(ctx, sc, m)
		log.Info().Str("code", sc.Code).Int64("product_ref", req.ProductRef).Int64("variant_ref", req.VariantRef).
			Msg("mapping: added")
	}
	return &dto.AddMappingResponse{MappingResponse: toMappingResponse(m), Created: created}, nil
}

// warnOnOverlap logs when the same catalog reference now resolves to more
// than one stock code. Resolution stays deterministic (earliest mapping wins).
func (s *mappingService) warnOnOverlap(ctx context.Context, sc *model.StockCode, m *model.Mapping) {
	var (
		codes []model.StockCode
		err   error
	)
	if m.IsVariantLevel() {
		codes, err = s.mappings.CodesForVariant(ctx, m.VariantRef)
	} else {
		codes, err = s.mappings.CodesForProduct(ctx, m.ProductRef)
	}
	if err != nil || len(codes) < 2 {
		return
	}
	log.Warn().Str("code", sc.Code).Str("resolves_to", codes[0].Code).Int("codes", len(codes)).
		Int64("product_ref", m.ProductRef).Int64("variant_ref", m.VariantRef).
		Msg("mapping: catalog reference mapped to several stock codes")
}

func (s *mappingService) RemoveMapping(ctx context.Context, mappingID uuid.UUID) error {
	if err := s.mappings.Delete(ctx, mappingID); err != nil {
		return classify("remove mapping", err)
	}
	return nil
}

func (s *mappingService) ListMappings(ctx context.Context, stockCodeID uuid.UUID) ([]dto.MappingResponse, error) {
	if _, err := s.codes.FindByID(ctx, stockCodeID); err != nil {
		return nil, classify("list mappings", err)
	}
	mappings, err := s.mappings.ListByStockCode(ctx, stockCodeID)
	if err != nil {
		return nil, persistence("list mappings", err)
	}
	out := make([]dto.MappingResponse, len(mappings))
	for i := range mappings {
		out[i] = toMappingResponse(&mappings[i])
		s.enrich(ctx, &out[i])
	}
	return out, nil
}

// enrich adds catalog labels on a best-effort basis.
func (s *mappingService) enrich(ctx context.Context, r *dto.MappingResponse) {
	if s.catalog == nil {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	item, err := s.catalog.Lookup(lctx, r.ProductRef, r.VariantRef)
	if err != nil {
		if !errors.Is(err, infra.ErrCatalogNotFound) {
			log.Debug().Err(err).Int64("product_ref", r.ProductRef).Msg("mapping: catalog lookup failed")
		}
		return
	}
	r.Label = &item.Name
	r.SKU = &item.SKU
}

func (s *mappingService) ResolveByVariant(ctx context.Context, variantRef int64) (*model.StockCode, error) {
	if variantRef == model.NoVariant {
		return nil, nil
	}
	codes, err := s.mappings.CodesForVariant(ctx, variantRef)
	if err != nil {
		return nil, persistence("resolve variant", err)
	}
	return first(codes), nil
}

func (s *mappingService) ResolveByProduct(ctx context.Context, productRef int64) (*model.StockCode, error) {
	if productRef <= 0 {
		return nil, nil
	}
	codes, err := s.mappings.CodesForProduct(ctx, productRef)
	if err != nil {
		return nil, persistence("resolve product", err)
	}
	return first(codes), nil
}

func (s *mappingService) Resolve(ctx context.Context, productRef, variantRef int64) (*model.StockCode, error) {
	sc, err := s.ResolveByVariant(ctx, variantRef)
	if err != nil || sc != nil {
		return sc, err
	}
	return s.ResolveByProduct(ctx, productRef)
}

func (s *mappingService) CodeForVariant(ctx context.Context, variantRef int64) (*dto.VariantCodeResponse, error) {
	sc, err := s.ResolveByVariant(ctx, variantRef)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, fmt.Errorf("variant %d has no stock code: %w", variantRef, ErrInvalidReference)
	}
	return &dto.VariantCodeResponse{VariantRef: variantRef, Code: sc.Code}, nil
}

func first(codes []model.StockCode) *model.StockCode {
	if len(codes) == 0 {
		return nil
	}
	return &codes[0]
}

func toMappingResponse(m *model.Mapping) dto.MappingResponse {
	return dto.MappingResponse{
		ID:          m.ID.String(),
		StockCodeID: m.StockCodeID.String(),
		ProductRef:  m.ProductRef,
		VariantRef:  m.VariantRef,
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
