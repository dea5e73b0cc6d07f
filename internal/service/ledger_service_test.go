package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── CreateCode ───────────────────────────────────────────────────────────────

func TestCreateCode_WritesInitialHistory(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "S1", 10)

	entries := f.historyFor(t, id)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, model.ChangeAdd, e.ChangeKind)
	assert.Equal(t, 0, e.StockBefore)
	assert.Equal(t, 10, e.StockAfter)
	assert.Equal(t, service.InitialStockComment, e.Comment)
	assert.Equal(t, 10, f.quantity(t, id))
}

func TestCreateCode_ZeroQuantityHasNoHistory(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "S0", 0)
	assert.Empty(t, f.historyFor(t, id))
	assert.Equal(t, 0, f.quantity(t, id))
}

func TestCreateCode_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCode(t, "DUP", 1)

	_, err := f.ledger.CreateCode(ctx, dto.CreateStockCodeRequest{Code: "DUP"}, nil)
	assert.ErrorIs(t, err, service.ErrDuplicateCode)

	_, err = f.ledger.CreateCode(ctx, dto.CreateStockCodeRequest{Code: "NEG", InitialQuantity: -1}, nil)
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)

	_, err = f.ledger.CreateCode(ctx, dto.CreateStockCodeRequest{Code: "   "}, nil)
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)
}

// ── Adjust ───────────────────────────────────────────────────────────────────

func TestAdjust_QuantityMatchesSignedSumAndLastHistory(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "SUM", 5)
	ctx := context.Background()

	steps := []struct {
		kind model.ChangeKind
		qty  int
	}{
		{model.ChangeAdd, 3},
		{model.ChangeRemove, 4},
		{model.ChangeOrderShipped, 6},
		{model.ChangeOrderReturned, 2},
		{model.ChangeRemove, 1},
	}
	want := 5
	for _, s := range steps {
		res, err := f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: id, Quantity: s.qty, Kind: s.kind})
		require.NoError(t, err)
		want += s.kind.Sign() * s.qty
		assert.Equal(t, want, res.StockAfter)
	}
	// 5 + 3 - 4 - 6 + 2 - 1: negative stock is allowed.
	assert.Equal(t, -1, want)
	assert.Equal(t, want, f.quantity(t, id))

	latest, err := f.history.LatestForCode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, latest.StockAfter)

	for _, e := range f.historyFor(t, id) {
		switch e.ChangeKind {
		case model.ChangeAdd, model.ChangeOrderReturned:
			assert.Equal(t, e.Quantity, e.StockAfter-e.StockBefore)
		default:
			assert.Equal(t, e.Quantity, e.StockBefore-e.StockAfter)
		}
	}
}

func TestAdjust_RecordsOrderRefAndActor(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "ACT", 0)
	actor := uuid.New()

	_, err := f.ledger.Adjust(context.Background(), service.AdjustParams{
		StockCodeID: id, Quantity: 2, Kind: model.ChangeAdd, Comment: "recount", OrderRef: "O-9", ActorID: &actor,
	})
	require.NoError(t, err)

	entries := f.historyFor(t, id)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].OrderRef)
	assert.Equal(t, "O-9", *entries[0].OrderRef)
	assert.Equal(t, actor, *entries[0].ActorID)
	assert.Equal(t, "recount", entries[0].Comment)
}

func TestAdjust_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "BAD", 1)
	ctx := context.Background()

	for _, qty := range []int{0, -3} {
		_, err := f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: id, Quantity: qty, Kind: model.ChangeAdd})
		assert.ErrorIs(t, err, service.ErrInvalidQuantity)
	}
	_, err := f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: id, Quantity: 1, Kind: "teleport"})
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)

	_, err = f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: uuid.New(), Quantity: 1, Kind: model.ChangeAdd})
	assert.ErrorIs(t, err, service.ErrInvalidReference)

	assert.Equal(t, 1, f.quantity(t, id))
	assert.Len(t, f.historyFor(t, id), 1)
}

func TestAdjust_RejectsResultOutsideStorableRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	top := f.createCode(t, "TOP", service.MaxQuantity-1)
	low := f.createCode(t, "LOW", 0)

	_, err := f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: top, Quantity: 2, Kind: model.ChangeAdd})
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)
	_, err = f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: top, Quantity: service.MaxQuantity + 1, Kind: model.ChangeRemove})
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)
	assert.Equal(t, service.MaxQuantity-1, f.quantity(t, top))
	assert.Len(t, f.historyFor(t, top), 1)

	res, err := f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: top, Quantity: 1, Kind: model.ChangeAdd})
	require.NoError(t, err)
	assert.Equal(t, service.MaxQuantity, res.StockAfter)

	_, err = f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: low, Quantity: service.MaxQuantity, Kind: model.ChangeRemove})
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: low, Quantity: 2, Kind: model.ChangeRemove})
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)
	assert.Equal(t, -service.MaxQuantity, f.quantity(t, low))

	_, err = f.ledger.CreateCode(ctx, dto.CreateStockCodeRequest{Code: "HUGE", InitialQuantity: service.MaxQuantity + 1}, nil)
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)
}

// TestAdjust_HistoryFailureRollsBack runs Adjust against a mocked PostgreSQL
// connection whose history insert fails: the quantity update must roll back.
func TestAdjust_HistoryFailureRollsBack(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "current_quantity"}).
		AddRow(id.String(), "PG1", "PG one", 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "stock_codes" WHERE id = \$1`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "stock_codes" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "stock_history"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	ledger := service.NewLedgerService(
		repository.NewStockCodeRepository(db),
		repository.NewMappingRepository(db),
		repository.NewHistoryRepository(db),
	)
	_, err = ledger.Adjust(context.Background(), service.AdjustParams{StockCodeID: id, Quantity: 3, Kind: model.ChangeRemove})
	assert.ErrorIs(t, err, service.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCodeByCode(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "LOOK", 2)
	f.mapVariant(t, id, 50, 51)
	ctx := context.Background()

	resp, err := f.ledger.GetCodeByCode(ctx, " LOOK ")
	require.NoError(t, err)
	assert.Equal(t, id.String(), resp.ID)
	assert.Equal(t, 1, resp.MappingCount)

	_, err = f.ledger.GetCodeByCode(ctx, "MISSING")
	assert.ErrorIs(t, err, service.ErrInvalidReference)
	_, err = f.ledger.GetCodeByCode(ctx, "  ")
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)
}

// ── Delete / rename ──────────────────────────────────────────────────────────

func TestDeleteCode_RemovesMappingsKeepsHistory(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "DEL", 4)
	f.mapVariant(t, id, 100, 101)
	ctx := context.Background()

	require.NoError(t, f.ledger.DeleteCode(ctx, id))

	sc, err := f.mappings.ResolveByVariant(ctx, 101)
	require.NoError(t, err)
	assert.Nil(t, sc)

	entries := f.historyFor(t, id)
	require.Len(t, entries, 1)
	assert.Equal(t, "DEL", entries[0].Code)

	assert.ErrorIs(t, f.ledger.DeleteCode(ctx, id), service.ErrInvalidReference)
}

func TestUpdateName(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "REN", 0)
	ctx := context.Background()

	resp, err := f.ledger.UpdateName(ctx, id, "  Blue mug ")
	require.NoError(t, err)
	assert.Equal(t, "Blue mug", resp.Name)
	assert.Equal(t, "REN", resp.Code)

	_, err = f.ledger.UpdateName(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, service.ErrInvalidReference)
}

// ── Listing / export ─────────────────────────────────────────────────────────

func TestListCodes_Paging(t *testing.T) {
	f := newFixture(t)
	for _, c := range []string{"A", "B", "C"} {
		f.createCode(t, c, 1)
	}
	resp, err := f.ledger.ListCodes(context.Background(), dto.StockCodeFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "C", resp.Data[0].Code)
}

func TestListHistory_FilterByKindAndBadDate(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "LH", 3)
	ctx := context.Background()
	_, err := f.ledger.Adjust(ctx, service.AdjustParams{StockCodeID: id, Quantity: 1, Kind: model.ChangeRemove})
	require.NoError(t, err)

	resp, err := f.ledger.ListHistory(ctx, dto.HistoryFilter{Code: "LH", Kind: "remove"})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.Data[0].StockBefore)

	_, err = f.ledger.ListHistory(ctx, dto.HistoryFilter{DateFrom: "yesterday"})
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)
}

func TestExportHistory_WritesWorkbook(t *testing.T) {
	f := newFixture(t)
	id := f.createCode(t, "XL", 7)
	_, err := f.ledger.Adjust(context.Background(), service.AdjustParams{StockCodeID: id, Quantity: 2, Kind: model.ChangeRemove})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.ledger.ExportHistory(context.Background(), dto.HistoryFilter{Code: "XL"}, &buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := wb.GetRows("History")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Code", rows[0][1])
	assert.Equal(t, "remove", rows[1][2])
	assert.Equal(t, "add", rows[2][2])
}
