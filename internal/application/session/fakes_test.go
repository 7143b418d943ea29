package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/document"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/persistence/memory"
	"github.com/webmasters-learning/receipt-desk/pkg/timeutil"
)

// fakeSource is an in-memory student service.
type fakeSource struct {
	mu        sync.Mutex
	list      []student.Summary
	listErr   error
	listGate  chan struct{}
	details   map[string]*student.Detail
	gates     map[string]chan struct{}
	listCalls int
	getCalls  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		details: map[string]*student.Detail{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakeSource) ListStudents(ctx context.Context) ([]student.Summary, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeSource) GetStudent(ctx context.Context, id string) (*student.Detail, error) {
	f.mu.Lock()
	f.getCalls++
	gate := f.gates[id]
	d, ok := f.details[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeSource) calls() (list, get int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.getCalls
}

// fakeStore records every Put.
type fakeStore struct {
	mu   sync.Mutex
	puts map[string][]byte
	err  error
}

func newFakeStore() *fakeStore { return &fakeStore{puts: map[string][]byte{}} }

func (s *fakeStore) Put(_ context.Context, key string, pdf []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.puts[key] = pdf
	return "mem://" + key, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

// stepClock is a settable clock.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// blockingAsset never delivers until ctx is done.
type blockingAsset struct{}

func (blockingAsset) Load(ctx context.Context) (*document.Asset, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 3))
	for x := 0; x < 6; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var errBackendDown = errors.New("backend down")

type harness struct {
	source  *fakeSource
	store   *fakeStore
	archive *memory.ReceiptArchive
	clock   *stepClock
	manager *Manager
}

type harnessOption func(*document.Config, *document.AssetLoader)

func withAsset(loader document.AssetLoader) harnessOption {
	return func(_ *document.Config, l *document.AssetLoader) { *l = loader }
}

func withAssetPolicy(p receipt.AssetPolicy, timeout time.Duration) harnessOption {
	return func(c *document.Config, _ *document.AssetLoader) {
		c.AssetPolicy = p
		c.AssetTimeout = timeout
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := document.DefaultConfig()
	cfg.AssetTimeout = time.Second
	var loader document.AssetLoader = document.StaticAsset(signaturePNG(t))
	for _, opt := range opts {
		opt(&cfg, &loader)
	}

	clock := &stepClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	h := &harness{
		source:  newFakeSource(),
		store:   newFakeStore(),
		archive: memory.NewReceiptArchive(),
		clock:   clock,
	}
	h.manager = NewManager(ManagerConfig{IdleTTL: time.Hour}, Dependencies{
		Source:   h.source,
		Exporter: document.NewExporter(cfg, loader, nil),
		Store:    h.store,
		Archive:  h.archive,
		Dates:    timeutil.NewDateFormatter(time.UTC, "", clock.Now),
		Clock:    clock.Now,
	})
	return h
}

func (h *harness) archived(t *testing.T) int {
	t.Helper()
	n, err := h.archive.Count(context.Background())
	require.NoError(t, err)
	return n
}
