// Package invoice renders order invoices to PDF with headless Chrome.
package invoice

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"time"

	"byteshop/internal/models"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

//go:embed invoice.html
var invoiceHTML string

var invoiceTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(invoiceHTML))

const renderTimeout = 30 * time.Second

type Company struct {
	Name string
	IBAN string
	BIC  string
}

// Renderer owns one Chrome allocator shared by every render.
type Renderer struct {
	company Company
	alloc   context.Context
	cancel  context.CancelFunc
}

func NewRenderer(company Company) *Renderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
	)
	alloc, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Renderer{company: company, alloc: alloc, cancel: cancel}
}

func (r *Renderer) Close() { r.cancel() }

// SepaPayload builds an EPC069-12 credit transfer payload.
func SepaPayload(bic, name, iban, reference string, amount decimal.Decimal) string {
	return strings.Join([]string{
		"BCD",
		"002",
		"1",
		"SCT",
		bic,
		name,
		strings.ReplaceAll(iban, " ", ""),
		"EUR" + amount.StringFixed(2),
		"",
		"",
		reference,
	}, "\n")
}

// SepaQR returns the payload as a PNG data URI.
func SepaQR(payload string) (template.URL, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}

func Number(orderID string) string {
	id := strings.ReplaceAll(orderID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return "INV-" + strings.ToUpper(id)
}

type view struct {
	Company  string
	IBAN     string
	BIC      string
	Number   string
	IssuedAt string
	QRCode   template.URL
	Order    *models.OrderWithItems
	Customer *models.User
}

// HTML renders the invoice page.
func (r *Renderer) HTML(order *models.OrderWithItems, customer *models.User) (string, error) {
	v := view{
		Company:  r.company.Name,
		IBAN:     r.company.IBAN,
		BIC:      r.company.BIC,
		Number:   Number(order.ID),
		IssuedAt: order.CreatedAt.Format("2006-01-02"),
		Order:    order,
		Customer: customer,
	}
	if r.company.IBAN != "" {
		qr, err := SepaQR(SepaPayload(r.company.BIC, r.company.Name, r.company.IBAN, v.Number, order.TotalAmount))
		if err != nil {
			return "", fmt.Errorf("sepa qr: %w", err)
		}
		v.QRCode = qr
	}

	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render invoice html: %w", err)
	}
	return buf.String(), nil
}

// Render prints the invoice to an A4 PDF.
func (r *Renderer) Render(ctx context.Context, order *models.OrderWithItems, customer *models.User) ([]byte, error) {
	html, err := r.HTML(order, customer)
	if err != nil {
		return nil, err
	}

	tab, cancelTab := chromedp.NewContext(r.alloc)
	defer cancelTab()
	tab, cancel := context.WithTimeout(tab, renderTimeout)
	defer cancel()
	// stop the tab when the request goes away
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var pdf []byte
	err = chromedp.Run(tab,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			pdf = buf
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print invoice: %w", err)
	}
	return pdf, nil
}
