package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"byteshop/internal/models"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "R$ " + d.StringFixed(2) },
}

func parse(name string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

var (
	confirmationTmpl = parse("order_confirmation.html")
	statusTmpl       = parse("order_status.html")
	lowStockTmpl     = parse("low_stock.html")
)

// EmailNotifier renders the order and stock emails and hands them to a Mailer.
type EmailNotifier struct {
	mailer      *Mailer
	shop        string
	frontendURL string
	adminEmail  string
}

func NewEmailNotifier(mailer *Mailer, shop, frontendURL, adminEmail string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, shop: shop, frontendURL: frontendURL, adminEmail: adminEmail}
}

type page struct {
	Shop        string
	Title       string
	FrontendURL string
	Customer    string
	Order       interface{}
	Products    []models.Product
	Message     string
	Color       string
}

func (n *EmailNotifier) page(title string) page {
	return page{Shop: n.shop, Title: title, FrontendURL: n.frontendURL}
}

func render(t *template.Template, data page) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func (n *EmailNotifier) OrderConfirmation(ctx context.Context, to *models.User, order *models.OrderWithItems) error {
	subject, html, err := n.renderConfirmation(to, order)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, to.Email, subject, html)
}

func (n *EmailNotifier) renderConfirmation(to *models.User, order *models.OrderWithItems) (string, string, error) {
	data := n.page("Order confirmation")
	data.Customer = to.FullName
	data.Order = order
	html, err := render(confirmationTmpl, data)
	return fmt.Sprintf("✅ Order #%s confirmed - %s", shortID(order.ID), n.shop), html, err
}

func (n *EmailNotifier) OrderStatusChanged(ctx context.Context, to *models.User, order *models.Order) error {
	subject, html, err := n.renderStatus(to, order)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, to.Email, subject, html)
}

func (n *EmailNotifier) renderStatus(to *models.User, order *models.Order) (string, string, error) {
	data := n.page("Order update")
	data.Customer = to.FullName
	data.Order = order
	data.Message, data.Color = statusCopy(order.Status)
	html, err := render(statusTmpl, data)
	return fmt.Sprintf("%s - %s", statusSubject(order.Status), n.shop), html, err
}

// LowStockAlert mails the operator; it is a no-op without an admin address.
func (n *EmailNotifier) LowStockAlert(ctx context.Context, products []models.Product) error {
	if n.adminEmail == "" || len(products) == 0 {
		return nil
	}
	subject, html, err := n.renderLowStock(products)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, n.adminEmail, subject, html)
}

func (n *EmailNotifier) renderLowStock(products []models.Product) (string, string, error) {
	data := n.page("Low stock alert")
	data.Products = products
	html, err := render(lowStockTmpl, data)
	return fmt.Sprintf("⚠️ %d product(s) low on stock - %s", len(products), n.shop), html, err
}

func statusSubject(s models.OrderStatus) string {
	switch s {
	case models.OrderProcessing:
		return "⚙️ Your order is being prepared"
	case models.OrderShipped:
		return "📦 Your order has shipped"
	case models.OrderDelivered:
		return "🎉 Your order was delivered"
	case models.OrderCancelled:
		return "❌ Your order was cancelled"
	default:
		return "📋 Order update"
	}
}

func statusCopy(s models.OrderStatus) (message, color string) {
	switch s {
	case models.OrderProcessing:
		return "We are preparing your items for shipment.", "#f59e0b"
	case models.OrderShipped:
		return "Your package is on its way.", "#3b82f6"
	case models.OrderDelivered:
		return "Your package was delivered. Enjoy!", "#10b981"
	case models.OrderCancelled:
		return "Your order was cancelled and will not be charged.", "#ef4444"
	default:
		return "Your order status changed.", "#6b7280"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
