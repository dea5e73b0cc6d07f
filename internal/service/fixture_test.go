package service_test

import (
	"context"
	"sync"
	"testing"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"
	"stockledger/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Fixture ──────────────────────────────────────────────────────────────────

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*dto.OrderReport
}

func (n *recordingNotifier) NotifyOrderFailure(_ context.Context, r *dto.OrderReport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
}

type fixture struct {
	db       *gorm.DB
	codes    repository.StockCodeRepository
	history  repository.HistoryRepository
	ledger   service.LedgerService
	mappings service.MappingService
	tracker  service.TrackerService
	events   service.OrderEventService
	notifier *recordingNotifier
}

var testStatuses = service.OrderStatuses{Ship: "process-to-ship", Return: "return-xl"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:       db,
		codes:    repository.NewStockCodeRepository(db),
		history:  repository.NewHistoryRepository(db),
		notifier: &recordingNotifier{},
	}
	mappingRepo := repository.NewMappingRepository(db)
	f.ledger = service.NewLedgerService(f.codes, mappingRepo, f.history)
	f.mappings = service.NewMappingService(f.codes, mappingRepo, nil)
	f.tracker = service.NewTrackerService(repository.NewTrackingRepository(db))
	f.events = service.NewOrderEventService(db, f.ledger, f.mappings, f.tracker, f.notifier, testStatuses)
	return f
}

// withLedger rebuilds the processor around a different ledger.
func (f *fixture) withLedger(l service.LedgerService) {
	f.events = service.NewOrderEventService(f.db, l, f.mappings, f.tracker, f.notifier, testStatuses)
}

func (f *fixture) createCode(t *testing.T, code string, qty int) uuid.UUID {
	t.Helper()
	resp, err := f.ledger.CreateCode(context.Background(), dto.CreateStockCodeRequest{Code: code, Name: code, InitialQuantity: qty}, nil)
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

func (f *fixture) mapVariant(t *testing.T, id uuid.UUID, productRef, variantRef int64) {
	t.Helper()
	_, err := f.mappings.AddMapping(context.Background(), id, dto.AddMappingRequest{ProductRef: productRef, VariantRef: variantRef})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	sc, err := f.codes.FindByID(context.Background(), id)
	require.NoError(t, err)
	return sc.CurrentQuantity
}

func (f *fixture) historyFor(t *testing.T, id uuid.UUID) []model.StockHistoryEntry {
	t.Helper()
	entries, _, err := f.history.List(context.Background(), repository.HistoryFilter{StockCodeID: &id, Limit: 500})
	require.NoError(t, err)
	return entries
}
