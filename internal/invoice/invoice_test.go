package invoice

import (
	"strings"
	"testing"
	"time"

	"byteshop/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSepaPayload(t *testing.T) {
	payload := SepaPayload("KREDBEBB", "ByteShop", "BE12 3456 7890 1234", "INV-1", decimal.RequireFromString("99.5"))
	lines := strings.Split(payload, "\n")

	require.Len(t, lines, 11)
	assert.Equal(t, "BCD", lines[0])
	assert.Equal(t, "SCT", lines[3])
	assert.Equal(t, "BE12345678901234", lines[6])
	assert.Equal(t, "EUR99.50", lines[7])
	assert.Equal(t, "INV-1", lines[10])
}

func TestSepaQR(t *testing.T) {
	uri, err := SepaQR("BCD\n002")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(uri), "data:image/png;base64,"))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "INV-0B7C2A8E1111", Number("0b7c2a8e-1111-2222-3333-444455556666"))
	assert.Equal(t, "INV-ABC", Number("abc"))
}

func TestHTML(t *testing.T) {
	r := &Renderer{company: Company{Name: "ByteShop", IBAN: "BE12345678901234", BIC: "KREDBEBB"}}
	order := &models.OrderWithItems{
		Order: models.Order{
			ID:              "0b7c2a8e-1111-2222-3333-444455556666",
			Status:          models.OrderPending,
			TotalAmount:     decimal.RequireFromString("300"),
			ShippingAddress: "Rua A, 1",
			CreatedAt:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		Items: []models.OrderItem{{ProductName: "Monitor", Quantity: 1, UnitPrice: decimal.NewFromInt(300), Subtotal: decimal.NewFromInt(300)}},
	}

	html, err := r.HTML(order, &models.User{FullName: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Contains(t, html, "INV-0B7C2A8E1111")
	assert.Contains(t, html, "2024-05-01")
	assert.Contains(t, html, "300.00")
	assert.Contains(t, html, `src="data:image/png;base64,`)

	r.company.IBAN = ""
	html, err = r.HTML(order, &models.User{FullName: "Ana"})
	require.NoError(t, err)
	assert.NotContains(t, html, "data:image/png")
}
