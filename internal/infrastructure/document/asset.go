package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// maxAssetBytes bounds the signature image size.
const maxAssetBytes = 4 << 20

// Asset is a loaded image ready to be placed on the page.
type Asset struct {
	Data []byte
	Type string // PNG, JPG or GIF
}

// AssetLoader fetches the signature image. Implementations must honor ctx.
type AssetLoader interface {
	Load(ctx context.Context) (*Asset, error)
}

// AssetResult is what the loader goroutine delivers.
type AssetResult struct {
	Asset *Asset
	Err   error
}

// ErrNoAsset is returned by loaders that have nothing configured.
var ErrNoAsset = errors.New("document: no signature asset configured")

// ══════════════════════════════════════════════════════════════════════════════
// LOADERS
// ══════════════════════════════════════════════════════════════════════════════

// FileAsset reads the image from disk on every export.
type FileAsset struct {
	Path string
}

// Load implements AssetLoader.
func (f FileAsset) Load(ctx context.Context) (*Asset, error) {
	if f.Path == "" {
		return nil, ErrNoAsset
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	return newAsset(data)
}

// URLAsset downloads the image over HTTP.
type URLAsset struct {
	URL    string
	Client *http.Client
}

// Load implements AssetLoader.
func (u URLAsset) Load(ctx context.Context) (*Asset, error) {
	if u.URL == "" {
		return nil, ErrNoAsset
	}
	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch signature: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch signature: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	return newAsset(data)
}

// StaticAsset serves bytes already in memory.
type StaticAsset []byte

// Load implements AssetLoader.
func (s StaticAsset) Load(ctx context.Context) (*Asset, error) {
	if len(s) == 0 {
		return nil, ErrNoAsset
	}
	return newAsset(s)
}

// CachedAsset loads once and keeps the first successful result.
type CachedAsset struct {
	Loader AssetLoader

	ready chan struct{}
	asset *Asset
}

// NewCachedAsset wraps a loader so the image is fetched at most once.
func NewCachedAsset(loader AssetLoader) *CachedAsset {
	return &CachedAsset{Loader: loader, ready: make(chan struct{}, 1)}
}

// Load implements AssetLoader.
func (c *CachedAsset) Load(ctx context.Context) (*Asset, error) {
	select {
	case c.ready <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.ready }()

	if c.asset != nil {
		return c.asset, nil
	}
	asset, err := c.Loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.asset = asset
	return asset, nil
}

// loadAsync starts the loader in its own goroutine. The channel is
// buffered so the goroutine never blocks after the caller gives up.
func loadAsync(ctx context.Context, loader AssetLoader) <-chan AssetResult {
	out := make(chan AssetResult, 1)
	go func() {
		if loader == nil {
			out <- AssetResult{Err: ErrNoAsset}
			return
		}
		asset, err := loader.Load(ctx)
		out <- AssetResult{Asset: asset, Err: err}
	}()
	return out
}

func newAsset(data []byte) (*Asset, error) {
	typ, err := imageType(data)
	if err != nil {
		return nil, err
	}
	return &Asset{Data: data, Type: typ}, nil
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	gifMagic  = []byte("GIF8")
)

func imageType(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "PNG", nil
	case bytes.HasPrefix(data, jpegMagic):
		return "JPG", nil
	case bytes.HasPrefix(data, gifMagic):
		return "GIF", nil
	}
	return "", errors.New("document: unsupported signature image format")
}
