package document

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
		img.Set(x, 2, color.RGBA{0, 0, 0, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// blockingAsset never delivers until ctx is done.
type blockingAsset struct{}

func (blockingAsset) Load(ctx context.Context) (*Asset, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingAsset struct{ err error }

func (f failingAsset) Load(context.Context) (*Asset, error) { return nil, f.err }

var adaForm = receipt.Form{
	StudentName:   "Ada Lovelace",
	Email:         "ada@x.com",
	Fees:          "500",
	RemainingFees: "100",
	Date:          "10/17/2026",
}

func TestExporter_ExportSigned(t *testing.T) {
	exp := NewExporter(DefaultConfig(), StaticAsset(testPNG(t)), nil)

	doc, err := exp.Export(context.Background(), adaForm)
	require.NoError(t, err)

	assert.Equal(t, "Receipt-Ada Lovelace.pdf", doc.Filename)
	assert.True(t, doc.Signed)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
}

func TestExporter_EmptyNameFilename(t *testing.T) {
	exp := NewExporter(DefaultConfig(), StaticAsset(testPNG(t)), nil)

	draft, err := exp.Build(receipt.Form{Email: "x@y.z"})
	require.NoError(t, err)
	assert.Equal(t, "Receipt-N/A.pdf", draft.Filename())
}

func TestExporter_AssetNeverLoadsFailPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetTimeout = 30 * time.Millisecond
	exp := NewExporter(cfg, blockingAsset{}, nil)

	doc, err := exp.Export(context.Background(), adaForm)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, shared.ErrAssetUnavailable)
}

func TestExporter_AssetNeverLoadsOmitPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetTimeout = 30 * time.Millisecond
	cfg.AssetPolicy = receipt.AssetPolicyOmit
	exp := NewExporter(cfg, blockingAsset{}, nil)

	doc, err := exp.Export(context.Background(), adaForm)
	require.NoError(t, err)
	assert.False(t, doc.Signed)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
}

func TestExporter_AssetErrorFailPolicy(t *testing.T) {
	exp := NewExporter(DefaultConfig(), failingAsset{errors.New("404")}, nil)

	_, err := exp.Export(context.Background(), adaForm)
	assert.ErrorIs(t, err, shared.ErrAssetUnavailable)
}

func TestExporter_NilLoader(t *testing.T) {
	exp := NewExporter(DefaultConfig(), nil, nil)

	_, err := exp.Export(context.Background(), adaForm)
	assert.ErrorIs(t, err, shared.ErrAssetUnavailable)
	assert.ErrorIs(t, err, ErrNoAsset)
}

func TestExporter_ContextCanceledWhileWaiting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetTimeout = 0
	exp := NewExporter(cfg, blockingAsset{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	draft, err := exp.Build(adaForm)
	require.NoError(t, err)
	assets := exp.LoadAsset(ctx)
	cancel()

	_, err = exp.Finalize(ctx, draft, assets)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, shared.ErrAssetUnavailable)
}

func TestExporter_ContextCanceledOverridesOmitPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetTimeout = 0
	cfg.AssetPolicy = receipt.AssetPolicyOmit
	exp := NewExporter(cfg, blockingAsset{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := exp.Export(ctx, adaForm)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExporter_LongValuesSplitAcrossPages(t *testing.T) {
	exp := NewExporter(DefaultConfig(), StaticAsset(testPNG(t)), nil)

	build := func(words int) *Draft {
		form := adaForm
		form.CourseDescription = strings.TrimSpace(strings.Repeat("module ", words)) + " capstone"
		draft, err := exp.Build(form)
		require.NoError(t, err)
		return draft
	}

	short := build(2000)
	long := build(6000)
	assert.Greater(t, short.pdf.PageCount(), 1)
	assert.Greater(t, long.pdf.PageCount(), short.pdf.PageCount())

	_, pageH := long.pdf.GetPageSize()
	assert.LessOrEqual(t, long.anchorY+captionOffsetY, pageH-footerGap)

	long.pdf.SetCompression(false)
	doc, err := exp.Finalize(context.Background(), long, exp.LoadAsset(context.Background()))
	require.NoError(t, err)

	out := string(doc.Data)
	assert.Equal(t, 6000, strings.Count(out, "module"), "every word is laid out")
	assert.Contains(t, out, "capstone) Tj")
}

func TestExporter_ShortRowMovesToNextPage(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginX, 10, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", 10)

	_, pageH := pdf.GetPageSize()
	r := rowLines{label: []string{"Fees"}, value: []string{"a", "b", "c"}}
	end := drawBodyRow(pdf, pageH-footerGap-rowHeight(1), r)

	assert.Equal(t, 2, pdf.PageCount())
	assert.InDelta(t, 10+rowHeight(3), end, 0.001)
}

func TestRowLines_Take(t *testing.T) {
	r := rowLines{label: []string{"Course"}, value: []string{"a", "b", "c"}}

	head, rest := r.take(2)
	assert.Equal(t, []string{"Course"}, head.label)
	assert.Equal(t, []string{"a", "b"}, head.value)
	assert.Empty(t, rest.label)
	assert.Equal(t, []string{"c"}, rest.value)
	assert.Equal(t, 1, rest.count())
	assert.Equal(t, 1, rowLines{}.count())
}

func TestFileAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signature.png")
	require.NoError(t, os.WriteFile(path, testPNG(t), 0o600))

	asset, err := FileAsset{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PNG", asset.Type)

	_, err = FileAsset{Path: filepath.Join(t.TempDir(), "missing.png")}.Load(context.Background())
	assert.Error(t, err)
}

func TestURLAsset(t *testing.T) {
	data := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/signature.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	asset, err := URLAsset{URL: srv.URL + "/signature.png"}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, data, asset.Data)

	_, err = URLAsset{URL: srv.URL + "/missing.png"}.Load(context.Background())
	assert.Error(t, err)
}

func TestCachedAsset_LoadsOnce(t *testing.T) {
	calls := 0
	cached := NewCachedAsset(countingAsset{data: testPNG(t), calls: &calls})

	for i := 0; i < 3; i++ {
		_, err := cached.Load(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

type countingAsset struct {
	data  []byte
	calls *int
}

func (c countingAsset) Load(ctx context.Context) (*Asset, error) {
	*c.calls++
	return StaticAsset(c.data).Load(ctx)
}

func TestImageType(t *testing.T) {
	typ, err := imageType([]byte{0xff, 0xd8, 0xff, 0xe0})
	require.NoError(t, err)
	assert.Equal(t, "JPG", typ)

	_, err = imageType([]byte("<svg/>"))
	assert.Error(t, err)
}
