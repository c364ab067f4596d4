package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"byteshop/internal/apperrors"
	"byteshop/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateThenGetProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.products.Create(ctx, CreateProductInput{
		Name:           "ThinkPad X1 Carbon",
		Description:    "14 inch ultrabook with 16GB RAM",
		Price:          decimal.RequireFromString("8999.90"),
		StockQuantity:  7,
		Category:       models.CategoryLaptops,
		Specifications: models.JSONMap{"ram": "16GB"},
	})
	require.NoError(t, err)

	got, err := env.products.Get(ctx, created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "ThinkPad X1 Carbon", got.Name)
	assert.True(t, decimal.RequireFromString("8999.90").Equal(got.Price))
	assert.Equal(t, models.CategoryLaptops, got.Category)
	assert.Equal(t, 7, got.StockQuantity)
	assert.True(t, got.IsActive)
	assert.Contains(t, env.audit.actions(), models.ActionProductCreate)
}

func TestGetUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.products.Get(context.Background(), "00000000-0000-0000-0000-000000000000", false)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 25; i++ {
		env.seedProduct(t, fmt.Sprintf("Product %02d", i), "10.00", 3)
	}

	products, page, err := env.products.List(context.Background(), models.ProductFilter{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, products, 10)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 10, Total: 25, TotalPages: 3}, page)

	// newest first: page 2 starts at the 11th newest product
	assert.Equal(t, "Product 14", products[0].Name)
}

func TestListDefaultsAndFilters(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "Mechanical keyboard", "350.00", 0)
	env.seedProduct(t, "Gaming mouse", "120.00", 4)

	products, page, err := env.products.List(context.Background(), models.ProductFilter{InStock: true})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	require.Len(t, products, 1)
	assert.Equal(t, "Gaming mouse", products[0].Name)

	min := decimal.NewFromInt(200)
	products, _, err = env.products.List(context.Background(), models.ProductFilter{MinPrice: &min})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Mechanical keyboard", products[0].Name)
}

func TestDeleteIsSoft(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, "Webcam", "199.00", 2)
	ctx := context.Background()

	require.NoError(t, env.products.Delete(ctx, p.ID))

	_, err := env.products.Get(ctx, p.ID, false)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	admin, err := env.products.Get(ctx, p.ID, true)
	require.NoError(t, err)
	assert.False(t, admin.IsActive)

	products, _, err := env.products.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestUpdateProductPartial(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, "Headset", "250.00", 5)
	price := decimal.RequireFromString("199.999")

	updated, err := env.products.Update(context.Background(), p.ID, models.ProductUpdate{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "200", updated.Price.String())
	assert.Equal(t, "Headset", updated.Name)
	assert.Equal(t, 5, updated.StockQuantity)
}

func TestCheckAvailability(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, "SSD", "400.00", 3)
	ctx := context.Background()

	ok, err := env.products.CheckAvailability(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.products.CheckAvailability(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	env.store.ErrorOnNextCall = errors.New("db down")
	_, err = env.products.CheckAvailability(ctx, p.ID, 1)
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusOf(err))
}

func TestSearchUsesIndexAndFallsBack(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct(t, "USB-C hub", "150.00", 5)
	b := env.seedProduct(t, "USB flash drive 64GB", "60.00", 5)
	ctx := context.Background()

	env.products.search = &fakeSearch{ids: []string{b.ID, a.ID, "missing"}}
	products, err := env.products.Search(ctx, "usb", 10)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, b.ID, products[0].ID)

	env.products.search = &fakeSearch{err: errors.New("es down")}
	products, err = env.products.Search(ctx, "hub", 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, a.ID, products[0].ID)

	names, err := env.products.Suggest(ctx, "usb", 5)
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, "Monitor 27", "1500.00", 2)
	ctx := context.Background()

	_, err := env.products.UploadImage(ctx, p.ID, "a.png", "image/png", 10, bytes.NewReader(make([]byte, 10)))
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.StatusOf(err))

	images := &fakeImages{}
	env.products.images = images

	_, err = env.products.UploadImage(ctx, p.ID, "a.pdf", "application/pdf", 10, bytes.NewReader(nil))
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = env.products.UploadImage(ctx, p.ID, "a.png", "image/png", MaxImageSize+1, bytes.NewReader(nil))
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	first, err := env.products.UploadImage(ctx, p.ID, "front view.PNG", "image/png", 3, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	assert.Contains(t, first.ImageURL, "peripherals/")
	assert.Contains(t, first.ImageURL, "_front_view.png")

	_, err = env.products.UploadImage(ctx, p.ID, "side.png", "image/png", 3, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	require.Len(t, images.deleted, 1)
	assert.Equal(t, images.uploaded[0], images.deleted[0])

	listed, err := env.products.ListImages(ctx, models.CategoryPeripherals)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestImageObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	assert.Equal(t, "laptops/1700000000000_my_photo__1_.jpg", ImageObjectPath(models.CategoryLaptops, "../My Photo (1).jpg", now))
}

func TestAdjustStockRecordsMovements(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, "Graphics card", "4200.00", 2)
	ctx := context.Background()

	mv, err := env.products.AdjustStock(ctx, p.ID, StockAdjustment{Type: models.MovementRestock, Quantity: 5, Reason: "supplier"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, mv.PrevStock)
	assert.Equal(t, 7, mv.NewStock)

	mv, err = env.products.AdjustStock(ctx, p.ID, StockAdjustment{Type: models.MovementAdjustment, Quantity: 1}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, -6, mv.Quantity)
	assert.Equal(t, 1, env.stockOf(t, p.ID))

	_, err = env.products.AdjustStock(ctx, p.ID, StockAdjustment{Type: models.MovementRestock, Quantity: 0}, "admin-1")
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = env.products.AdjustStock(ctx, "nope", StockAdjustment{Type: models.MovementRestock, Quantity: 1}, "admin-1")
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	movements, err := env.products.StockMovements(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.MovementAdjustment, movements[0].Type)
}

func TestLowStockAndReports(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "Cable", "20.00", 1)
	env.seedProduct(t, "Charger", "90.00", 50)
	ctx := context.Background()

	low, err := env.products.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Cable", low[0].Name)

	summary, err := env.products.CategorySummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 2, summary[0].ProductCount)
	assert.Equal(t, 51, summary[0].TotalStock)

	rows, err := env.products.InventoryReport(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReindexWithoutIndexIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "Tablet", "999.00", 3)

	n, err := env.products.Reindex(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	env.products.search = &fakeSearch{}
	n, err = env.products.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
