// Package document lays out the payment receipt PDF.
//
// Export is a two-phase completion. The text content is built
// synchronously while the signature image loads in its own goroutine; the
// two are joined in Finalize, which is the only step that produces bytes.
package document

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the text and timing used for every receipt.
type Config struct {
	Title    string
	Subtitle string
	Caption  string

	// AssetTimeout bounds the wait for the signature image. Zero waits
	// for as long as ctx allows.
	AssetTimeout time.Duration

	AssetPolicy receipt.AssetPolicy
}

// DefaultConfig returns the stock receipt layout.
func DefaultConfig() Config {
	return Config{
		Title:        "WebMasters Learning",
		Subtitle:     "Payment Receipt",
		Caption:      "CEO Signature",
		AssetTimeout: 10 * time.Second,
		AssetPolicy:  receipt.AssetPolicyFail,
	}
}

// Page geometry in millimetres on A4 portrait.
const (
	pageCenterX = 105.0
	marginX     = 14.0
	tableStartY = 40.0
	labelWidth  = 50.0
	valueWidth  = 132.0
	cellPadding = 1.8
	lineHeight  = 4.6

	titleX, titleY           = 51.0, 9.0
	subtitleY                = 20.0
	dateY                    = 30.0
	signatureX               = 140.0
	signatureOffsetY         = 18.0
	signatureW, signatureH   = 45.0, 20.0
	captionX, captionOffsetY = 145.0, 35.0

	// footerGap keeps table rows clear of the bottom page edge.
	footerGap = 10.0
)

const fontFamily = "Helvetica"

var headerFill = [3]int{41, 128, 185}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORTER
// ══════════════════════════════════════════════════════════════════════════════

// Document is a finalized receipt.
type Document struct {
	Filename string
	Data     []byte
	Signed   bool
}

// Draft is a receipt whose text content is laid out but which is not yet
// finalized.
type Draft struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	filename  string
	anchorY   float64 // the signature block hangs below this line
}

// Filename returns the download name of the draft.
func (d *Draft) Filename() string { return d.filename }

// Exporter renders receipts.
type Exporter struct {
	config Config
	asset  AssetLoader
	logger *logger.Logger
}

// NewExporter creates an exporter that signs receipts with the image
// supplied by asset.
func NewExporter(config Config, asset AssetLoader, log *logger.Logger) *Exporter {
	def := DefaultConfig()
	if config.Title == "" {
		config.Title = def.Title
	}
	if config.Subtitle == "" {
		config.Subtitle = def.Subtitle
	}
	if config.Caption == "" {
		config.Caption = def.Caption
	}
	if config.AssetPolicy == "" {
		config.AssetPolicy = def.AssetPolicy
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Exporter{
		config: config,
		asset:  asset,
		logger: log.With(logger.Component("document")),
	}
}

// LoadAsset starts loading the signature image in the background.
func (e *Exporter) LoadAsset(ctx context.Context) <-chan AssetResult {
	return loadAsync(ctx, e.asset)
}

// Build lays out the title block, the date line and the field table.
func (e *Exporter) Build(form receipt.Form) (*Draft, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginX, 10, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(e.config.Subtitle, true)
	pdf.SetCreator(e.config.Title, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontFamily, "", 32)
	pdf.Text(titleX, titleY, tr(e.config.Title))

	pdf.SetFont(fontFamily, "", 22)
	centerText(pdf, tr(e.config.Subtitle), subtitleY)

	pdf.SetFont(fontFamily, "", 12)
	centerText(pdf, tr("Date: "+form.Date), dateY)

	d := &Draft{pdf: pdf, tr: tr, filename: form.Filename()}
	d.anchorY = drawTable(pdf, tr, form.Rows())

	_, pageH := pdf.GetPageSize()
	_, top, _, _ := pdf.GetMargins()
	if d.anchorY+captionOffsetY > pageH-footerGap {
		pdf.AddPage()
		d.anchorY = top
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout receipt: %w", err)
	}
	return d, nil
}

// Finalize waits for the asset, places it with the caption and renders
// the bytes. With the fail policy a missing asset yields
// shared.ErrAssetUnavailable and no document. A canceled ctx always
// aborts, whatever the policy.
func (e *Exporter) Finalize(ctx context.Context, d *Draft, assets <-chan AssetResult) (*Document, error) {
	asset, err := e.awaitAsset(ctx, assets)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("finalize receipt: %w", ctxErr)
		}
		if e.config.AssetPolicy != receipt.AssetPolicyOmit {
			return nil, shared.WrapError("receipt", "Export", shared.ErrAssetUnavailable,
				"signature asset unavailable", err)
		}
		e.logger.Warn("finalizing receipt without signature",
			logger.Filename(d.filename),
			logger.Err(err),
		)
	}

	pdf := d.pdf
	signed := false
	if asset != nil {
		opts := fpdf.ImageOptions{ImageType: asset.Type}
		pdf.RegisterImageOptionsReader("signature", opts, bytes.NewReader(asset.Data))
		pdf.ImageOptions("signature", signatureX, d.anchorY+signatureOffsetY,
			signatureW, signatureH, false, opts, 0, "")
		signed = pdf.Ok()
		if !signed {
			if e.config.AssetPolicy != receipt.AssetPolicyOmit {
				return nil, shared.WrapError("receipt", "Export", shared.ErrAssetUnavailable,
					"signature asset unusable", pdf.Error())
			}
			pdf.ClearError()
		}
	}

	pdf.SetFont(fontFamily, "", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(captionX, d.anchorY+captionOffsetY, d.tr(e.config.Caption))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	return &Document{Filename: d.filename, Data: buf.Bytes(), Signed: signed}, nil
}

// Export runs both phases and joins them.
func (e *Exporter) Export(ctx context.Context, form receipt.Form) (*Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	assets := e.LoadAsset(ctx)
	draft, err := e.Build(form)
	if err != nil {
		return nil, err
	}
	return e.Finalize(ctx, draft, assets)
}

func (e *Exporter) awaitAsset(ctx context.Context, assets <-chan AssetResult) (*Asset, error) {
	var timeout <-chan time.Time
	if e.config.AssetTimeout > 0 {
		timer := time.NewTimer(e.config.AssetTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-assets:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Asset, nil
	case <-timeout:
		return nil, fmt.Errorf("signature asset not ready after %s", e.config.AssetTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LAYOUT HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func centerText(pdf *fpdf.Fpdf, text string, y float64) {
	pdf.Text(pageCenterX-pdf.GetStringWidth(text)/2, y, text)
}

// drawTable renders a grid table with a filled header row and returns
// the y coordinate of its bottom edge on the last page used. A row that
// does not fit below the cursor moves to the next page; a row taller than
// a whole page is split line by line and continues on the pages after.
func drawTable(pdf *fpdf.Fpdf, tr func(string) string, rows []receipt.Row) float64 {
	pdf.SetLineWidth(0.1)
	pdf.SetDrawColor(0, 0, 0)

	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.SetTextColor(255, 255, 255)
	y := drawRow(pdf, tableStartY, splitRow(pdf, tr("Field"), tr("Details")), true)

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		y = drawBodyRow(pdf, y, splitRow(pdf, tr(row.Label), tr(row.Value)))
	}
	return y
}

// rowLines holds the wrapped lines of both cells of one table row.
type rowLines struct {
	label []string
	value []string
}

func splitRow(pdf *fpdf.Fpdf, label, value string) rowLines {
	return rowLines{
		label: pdf.SplitText(label, labelWidth-2*cellPadding),
		value: pdf.SplitText(value, valueWidth-2*cellPadding),
	}
}

func (r rowLines) count() int {
	return max(len(r.label), len(r.value), 1)
}

// take splits off the first n lines of each cell.
func (r rowLines) take(n int) (head, rest rowLines) {
	cut := func(lines []string) ([]string, []string) {
		k := min(n, len(lines))
		return lines[:k], lines[k:]
	}
	head.label, rest.label = cut(r.label)
	head.value, rest.value = cut(r.value)
	return head, rest
}

func rowHeight(lines int) float64 {
	return float64(lines)*lineHeight + 2*cellPadding
}

func drawBodyRow(pdf *fpdf.Fpdf, y float64, r rowLines) float64 {
	_, pageH := pdf.GetPageSize()
	_, top, _, _ := pdf.GetMargins()
	limit := pageH - footerGap
	pageLines := int((limit - top - 2*cellPadding) / lineHeight)

	if y+rowHeight(r.count()) > limit && r.count() <= pageLines {
		pdf.AddPage()
		y = top
	}
	for {
		fit := int((limit - y - 2*cellPadding) / lineHeight)
		if fit >= r.count() {
			return drawRow(pdf, y, r, false)
		}
		if fit > 0 {
			var head rowLines
			head, r = r.take(fit)
			drawRow(pdf, y, head, false)
		}
		pdf.AddPage()
		y = top
	}
}

func drawRow(pdf *fpdf.Fpdf, y float64, r rowLines, fill bool) float64 {
	h := rowHeight(r.count())
	style := "D"
	if fill {
		style = "FD"
	}

	x := marginX
	for _, cell := range []struct {
		w     float64
		lines []string
	}{{labelWidth, r.label}, {valueWidth, r.value}} {
		pdf.Rect(x, y, cell.w, h, style)
		for i, line := range cell.lines {
			pdf.Text(x+cellPadding, y+cellPadding+float64(i+1)*lineHeight-1.2, line)
		}
		x += cell.w
	}
	return y + h
}
