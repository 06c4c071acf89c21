package flow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/pkg/robusthttp"
)

// Image hosts with unreliable TLS certificates. URLs on these hosts are
// handed to providers over plain http, and downloaded without verification.
var DefaultSpecialHosts = []string{"multimedia.nt.qq.com.cn"}

// Upper bound on a downloaded fallback image.
const DefaultMaxImageBytes = 20 << 20

// ImageFetcher downloads images that a provider could not moderate by URL, so
// they can be retried as inline payloads.
type ImageFetcher struct {
	Client       *http.Client
	SpecialHosts []string
	MaxBytes     int64
}

// NewImageFetcher builds a fetcher whose client skips TLS verification for
// specialHosts. Extra options tune the retrying client.
func NewImageFetcher(specialHosts []string, options ...robusthttp.Option) *ImageFetcher {
	options = append([]robusthttp.Option{robusthttp.WithInsecureHosts(specialHosts...)}, options...)
	return &ImageFetcher{
		Client:       robusthttp.NewFetchClient(options...),
		SpecialHosts: specialHosts,
		MaxBytes:     DefaultMaxImageBytes,
	}
}

func (f *ImageFetcher) special(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return slices.Contains(f.SpecialHosts, strings.ToLower(u.Hostname()))
}

// ProviderURL is the form of raw that providers are asked to fetch.
func (f *ImageFetcher) ProviderURL(raw string) string {
	if f.special(raw) && strings.HasPrefix(raw, "https://") {
		return "http://" + strings.TrimPrefix(raw, "https://")
	}
	return raw
}

// Fetch downloads raw, returning the body of a 200 response.
func (f *ImageFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	start := time.Now()
	defer func() {
		imageDownloadDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", censor.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		imageDownloadCount.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	imageDownloadCount.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image. url=%s statusCode=%d", raw, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes: %s", limit, raw)
	}
	return data, nil
}

// Inline downloads raw and renders it as an inline image payload. Content
// that does not sniff as a known image format is censor.ErrInvalidInput.
func (f *ImageFetcher) Inline(ctx context.Context, raw string) (string, error) {
	data, err := f.Fetch(ctx, raw)
	if err != nil {
		return "", err
	}
	if censor.SniffImageFormat(data) == censor.ImageFormatUnknown {
		return "", censor.Errorf(censor.ErrInvalidInput, "", "downloaded content is not a recognized image")
	}
	return censor.InlineImage(data), nil
}
