package core

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/zstd"
)

// HTTPClient is the plain (non-rendering) fetcher used for listings, feeds
// and the bookmaker directory.
type HTTPClient struct {
	http *resty.Client
}

type HTTPOptions struct {
	UserAgent string
	Referer   string
	Timeout   time.Duration
}

func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeaders(map[string]string{
		"accept":          "*/*",
		"accept-encoding": "gzip, deflate, br, zstd",
		"accept-language": "en-US,en;q=0.9",
		"referer":         opts.Referer,
		"user-agent":      opts.UserAgent,
	})

	return &HTTPClient{http: client}
}

func (c *HTTPClient) Get(ctx context.Context, url string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() >= 400 {
		return "", fmt.Errorf("get %s: status %d", url, res.StatusCode())
	}

	data, err := decodeBody(res.Header().Get("Content-Encoding"), body)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}

	return string(data), nil
}

// decodeBody undoes the content encoding ourselves: the accept-encoding
// header is set explicitly, so net/http leaves compressed bodies alone.
func decodeBody(encoding string, body io.Reader) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(encoding))

	switch {
	case enc == "br":
		return io.ReadAll(brotli.NewReader(body))
	case enc == "zstd":
		r, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case enc == "gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case enc == "deflate":
		r, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("deflate reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return io.ReadAll(body)
	}
}
