package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"shelfpair/internal/config"
	"shelfpair/internal/logging"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxFetchBytes       = 32 << 20
)

// Fetcher resolves job image identifiers (local paths or http(s) URLs) to
// data URLs suitable for a vision request. Remote fetches are authorized with
// the job's short-lived access credential. Failures are per-image: one bad
// image never corrupts another image's result.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
	maxEdge    int
}

// NewFetcher constructs a fetcher bound to the supplied configuration.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	maxEdge := 0
	if cfg != nil {
		maxEdge = cfg.Classifier.MaxImageEdge
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		logger:     logging.NewComponentLogger(logger, "images"),
		maxEdge:    maxEdge,
	}
}

// Fetch resolves one identifier to an encoded data URL.
func (f *Fetcher) Fetch(ctx context.Context, identifier, credential string) (string, error) {
	raw, err := f.fetchBytes(ctx, identifier, credential)
	if err != nil {
		return "", err
	}
	encoded, err := f.prepare(raw)
	if err != nil {
		return "", fmt.Errorf("prepare %s: %w", identifier, err)
	}
	return encoded, nil
}

func (f *Fetcher) fetchBytes(ctx context.Context, identifier, credential string) ([]byte, error) {
	if strings.HasPrefix(identifier, "http://") || strings.HasPrefix(identifier, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifier, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", identifier, err)
		}
		if credential != "" {
			req.Header.Set("Authorization", "Bearer "+credential)
		}
		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", identifier, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: http %d", identifier, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", identifier, err)
		}
		return data, nil
	}

	data, err := os.ReadFile(identifier)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", identifier, err)
	}
	return data, nil
}

// prepare downscales oversized images and re-encodes them as a JPEG data URL
// to bound the classifier payload.
func (f *Fetcher) prepare(raw []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if f.maxEdge > 0 && (bounds.Dx() > f.maxEdge || bounds.Dy() > f.maxEdge) {
		img = imaging.Fit(img, f.maxEdge, f.maxEdge, imaging.Lanczos)
		f.logger.Debug("image downscaled",
			logging.Int("original_width", bounds.Dx()),
			logging.Int("original_height", bounds.Dy()),
			logging.Int("max_edge", f.maxEdge),
		)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
