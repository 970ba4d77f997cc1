package export

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/money"
	"github.com/noah-isme/backend-importadora/internal/obs"
	"github.com/noah-isme/backend-importadora/internal/pricing"
	"github.com/noah-isme/backend-importadora/internal/settlement"
)

//go:embed templates/document.html.tmpl
var templateFS embed.FS

// Placeholder is printed wherever a figure could not be computed.
const Placeholder = "—"

// ErrRender wraps template and browser failures.
var ErrRender = errors.New("export: render failed")

var documentTemplate = template.Must(template.New("document.html.tmpl").Funcs(template.FuncMap{
	"amount":   formatAmount,
	"optional": formatOptional,
}).ParseFS(templateFS, "templates/document.html.tmpl"))

// Document is everything printed on a quote or order. Figures come only from Summary.
type Document struct {
	Title      string
	Number     string
	ClientName string
	IssuedAt   time.Time
	Summary    pricing.Summary
	Credit     credit.Decision
	Shipping   settlement.Shipping
	Billing    settlement.Billing
}

// Renderer turns documents into HTML and PDF.
type Renderer struct {
	ChromePath string
	Timeout    time.Duration
	Logger     zerolog.Logger
}

func (r *Renderer) timeout() time.Duration {
	if r != nil && r.Timeout > 0 {
		return r.Timeout
	}
	return 30 * time.Second
}

// HTML renders the document markup.
func (r *Renderer) HTML(doc Document) ([]byte, error) {
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = "Cotización"
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = time.Now()
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("%w: execute template: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// PDF renders the document in headless Chrome and prints it to letter-size PDF.
func (r *Renderer) PDF(ctx context.Context, doc Document) ([]byte, error) {
	html, err := r.HTML(doc)
	if err != nil {
		obs.Count(obs.DocumentsRenderedTotal, "error")
		return nil, err
	}
	pdf, err := r.printPDF(ctx, string(html))
	if err != nil {
		obs.Count(obs.DocumentsRenderedTotal, "error")
		r.Logger.Error().Err(err).Str("document", doc.Number).Msg("document_render_failed")
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	obs.Count(obs.DocumentsRenderedTotal, "ok")
	return pdf, nil
}

func (r *Renderer) printPDF(ctx context.Context, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)
	if r != nil && strings.TrimSpace(r.ChromePath) != "" {
		opts = append(opts, chromedp.ExecPath(r.ChromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

func formatAmount(a money.Amount) string {
	return money.Format(a.Decimal)
}

func formatOptional(a *money.Amount) string {
	if a == nil {
		return Placeholder
	}
	return money.Format(a.Decimal)
}
