package jobs

import (
	"context"
	"errors"
	"testing"

	"byteshop/internal/logging"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	low     []models.Product
	lowErr  error
	indexed int
}

func (s *stubCatalog) LowStock(context.Context) ([]models.Product, error) { return s.low, s.lowErr }
func (s *stubCatalog) Reindex(context.Context) (int, error)               { return s.indexed, nil }

type alertNotifier struct {
	services.Nop
	alerts [][]models.Product
}

func (n *alertNotifier) LowStockAlert(_ context.Context, products []models.Product) error {
	n.alerts = append(n.alerts, products)
	return nil
}

func TestScanLowStock(t *testing.T) {
	n := &alertNotifier{}
	catalog := &stubCatalog{}
	s := NewScheduler(catalog, n, logging.Discard())

	require.NoError(t, s.ScanLowStock(context.Background()))
	assert.Empty(t, n.alerts, "nothing low, no alert")

	catalog.low = []models.Product{{Name: "Keyboard", StockQuantity: 2}}
	require.NoError(t, s.ScanLowStock(context.Background()))
	require.Len(t, n.alerts, 1)
	assert.Equal(t, "Keyboard", n.alerts[0][0].Name)

	catalog.lowErr = errors.New("db down")
	assert.Error(t, s.ScanLowStock(context.Background()))
}

func TestRegister(t *testing.T) {
	s := NewScheduler(&stubCatalog{indexed: 3}, nil, logging.Discard())
	require.NoError(t, s.Register("@every 1h", "@daily"))
	assert.Len(t, s.cron.Entries(), 2)

	require.NoError(t, s.Reindex(context.Background()))
	assert.Error(t, s.Register("not a schedule", ""))
}

func TestRegisterDisabled(t *testing.T) {
	s := NewScheduler(&stubCatalog{}, nil, logging.Discard())
	require.NoError(t, s.Register("", ""))
	assert.Empty(t, s.cron.Entries())

	s.Start()
	s.Stop(context.Background())
}
