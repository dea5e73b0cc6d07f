package repository_test

import (
	"context"
	"testing"
	"time"

	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func createCode(t *testing.T, db *gorm.DB, code string, qty int) *model.StockCode {
	t.Helper()
	sc := &model.StockCode{Code: code, Name: code + " name", CurrentQuantity: qty}
	require.NoError(t, repository.NewStockCodeRepository(db).CreateTx(db, sc))
	return sc
}

// ── Stock codes ──────────────────────────────────────────────────────────────

func TestStockCode_DuplicateCodeIsTranslated(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewStockCodeRepository(db)
	createCode(t, db, "S100", 0)

	err := repo.CreateTx(db, &model.StockCode{Code: "S100"})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}

func TestStockCode_FindMissingReturnsErrNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewStockCodeRepository(db)

	_, err := repo.FindByCode(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStockCode_ListSearchSortAndPage(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewStockCodeRepository(db)
	createCode(t, db, "A-1", 30)
	createCode(t, db, "B-2", 10)
	createCode(t, db, "C-3", 20)
	createCode(t, db, "X-9", 5)

	codes, total, err := repo.List(context.Background(), repository.StockCodeFilter{
		SortBy: "quantity", Order: "desc", Page: 1, Limit: 2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, codes, 2)
	assert.Equal(t, "A-1", codes[0].Code)
	assert.Equal(t, "C-3", codes[1].Code)

	codes, total, err = repo.List(context.Background(), repository.StockCodeFilter{Search: "x-"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "X-9", codes[0].Code)
}

func TestStockCode_SetQuantityIsCompareAndSwap(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewStockCodeRepository(db)
	sc := createCode(t, db, "CAS", 10)

	ok, err := repo.SetQuantityTx(db, sc.ID, 10, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale "before" loses.
	ok, err = repo.SetQuantityTx(db, sc.ID, 10, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentQuantity)
}

// ── Mappings ─────────────────────────────────────────────────────────────────

func TestMapping_UpsertIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewMappingRepository(db)
	sc := createCode(t, db, "M1", 0)
	ctx := context.Background()

	first, created, err := repo.Upsert(ctx, &model.Mapping{StockCodeID: sc.ID, ProductRef: 11, VariantRef: 12})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.Upsert(ctx, &model.Mapping{StockCodeID: sc.ID, ProductRef: 11, VariantRef: 12})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.ListByStockCode(ctx, sc.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMapping_ProductLookupIgnoresVariantMappings(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewMappingRepository(db)
	variantCode := createCode(t, db, "VAR", 0)
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, &model.Mapping{StockCodeID: variantCode.ID, ProductRef: 50, VariantRef: 51})
	require.NoError(t, err)

	codes, err := repo.CodesForProduct(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, codes)

	codes, err = repo.CodesForVariant(ctx, 51)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "VAR", codes[0].Code)
}

func TestMapping_DeleteByStockCodeLeavesOthers(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewMappingRepository(db)
	a := createCode(t, db, "A", 0)
	b := createCode(t, db, "B", 0)
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, &model.Mapping{StockCodeID: a.ID, ProductRef: 1})
	require.NoError(t, err)
	_, _, err = repo.Upsert(ctx, &model.Mapping{StockCodeID: b.ID, ProductRef: 2})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByStockCodeTx(db, a.ID))

	left, err := repo.ListByStockCode(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
	gone, err := repo.ListByStockCode(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, gone)
}

// ── Order tracking ───────────────────────────────────────────────────────────

func TestTracking_ShipmentClaimedOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewTrackingRepository(db)
	sc := createCode(t, db, "T1", 10)
	now := time.Now().UTC()

	rec := func() *model.OrderTracking {
		return &model.OrderTracking{OrderRef: "O1", OrderLineRef: "L1", StockCodeID: sc.ID, Code: sc.Code, Quantity: 3}
	}

	claimed, err := repo.ClaimShipmentTx(db, rec(), now)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimShipmentTx(db, rec(), now)
	require.NoError(t, err)
	assert.False(t, claimed)

	rows, err := repo.ListByOrder(context.Background(), "O1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ShippedProcessed)
	assert.False(t, rows[0].ReturnProcessed)
}

func TestTracking_ReturnRequiresShipment(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewTrackingRepository(db)
	sc := createCode(t, db, "T2", 0)
	key := repository.TrackingKey{OrderRef: "O2", OrderLineRef: "L1", StockCodeID: sc.ID}
	now := time.Now().UTC()

	claimed, err := repo.ClaimReturnTx(db, key, now)
	require.NoError(t, err)
	assert.False(t, claimed, "no shipped row yet")
	_, err = repo.Find(context.Background(), key)
	assert.ErrorIs(t, err, repository.ErrNotFound, "an unshipped return leaves no row")
	rows, err := repo.ListByOrder(context.Background(), key.OrderRef)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = repo.ClaimShipmentTx(db, &model.OrderTracking{
		OrderRef: key.OrderRef, OrderLineRef: key.OrderLineRef, StockCodeID: sc.ID, Code: sc.Code, Quantity: 1,
	}, now)
	require.NoError(t, err)

	claimed, err = repo.ClaimReturnTx(db, key, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimReturnTx(db, key, now)
	require.NoError(t, err)
	assert.False(t, claimed, "second return is a no-op")

	row, err := repo.Find(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, row.ReturnProcessed)
	assert.NotNil(t, row.ReturnedAt)
}

// ── History ──────────────────────────────────────────────────────────────────

func TestHistory_FiltersAndNewestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewHistoryRepository(db)
	sc := createCode(t, db, "H1", 0)
	order := "O-7"

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []*model.StockHistoryEntry{
		{StockCodeID: sc.ID, Code: sc.Code, ChangeKind: model.ChangeAdd, Quantity: 5, StockBefore: 0, StockAfter: 5, CreatedAt: base},
		{StockCodeID: sc.ID, Code: sc.Code, ChangeKind: model.ChangeOrderShipped, Quantity: 2, StockBefore: 5, StockAfter: 3, OrderRef: &order, CreatedAt: base.Add(time.Hour)},
		{StockCodeID: sc.ID, Code: sc.Code, ChangeKind: model.ChangeRemove, Quantity: 1, StockBefore: 3, StockAfter: 2, CreatedAt: base.Add(48 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, repo.CreateTx(db, e))
	}
	ctx := context.Background()

	all, total, err := repo.List(ctx, repository.HistoryFilter{StockCodeID: &sc.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, model.ChangeRemove, all[0].ChangeKind)

	shipped, _, err := repo.List(ctx, repository.HistoryFilter{Kind: string(model.ChangeOrderShipped)})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, order, *shipped[0].OrderRef)

	from := base
	to := base.Add(24 * time.Hour)
	day, _, err := repo.List(ctx, repository.HistoryFilter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	assert.Len(t, day, 2)

	latest, err := repo.LatestForCode(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.StockAfter)
}

// ── Operators ────────────────────────────────────────────────────────────────

func TestOperator_LoginByEmailCaseInsensitive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOperatorRepository(db)
	ctx := context.Background()
	email := "Ana@Example.com"
	require.NoError(t, repo.Create(ctx, &model.Operator{
		Username: "ana", Name: "Ana", Email: &email, PasswordHash: "x", Role: model.RoleOperator, Active: true,
	}))

	got, err := repo.FindByUsername(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)

	require.NoError(t, repo.SetActive(ctx, got.ID, false))
	_, err = repo.FindByUsername(ctx, "ana")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
