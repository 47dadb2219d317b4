// Package shopapi talks to the storefront listing and detail endpoints.
package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL       = "https://api-shop.30shine.com/api/v1/web"
	DefaultDetailBaseURL = "https://shop.30shine.com"
	DefaultBuildID       = "YCAT8CqZsxROurPUx6-Ts"
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

// FetchMeta carries request-level telemetry.
type FetchMeta struct {
	StatusCode int
	Latency    time.Duration
}

type Options struct {
	BaseURL       string
	DetailBaseURL string
	// BuildID is the storefront build segment of the detail data path.
	BuildID   string
	UserAgent string
	Origin    string
	Referer   string
	Timeout   time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client issues single GET requests; it never retries.
type Client struct {
	baseURL       string
	detailBaseURL string
	buildID       string
	userAgent     string
	origin        string
	referer       string
	http          *http.Client
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	detail := strings.TrimSpace(opts.DetailBaseURL)
	if detail == "" {
		detail = DefaultDetailBaseURL
	}
	if _, err := url.Parse(detail); err != nil {
		return nil, fmt.Errorf("invalid detail base url: %w", err)
	}
	build := strings.TrimSpace(opts.BuildID)
	if build == "" {
		build = DefaultBuildID
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	hc := opts.HTTPClient
	if hc == nil {
		to := opts.Timeout
		if to <= 0 {
			to = 20 * time.Second
		}
		hc = &http.Client{Timeout: to}
	}
	return &Client{
		baseURL:       strings.TrimRight(base, "/"),
		detailBaseURL: strings.TrimRight(detail, "/"),
		buildID:       build,
		userAgent:     ua,
		origin:        opts.Origin,
		referer:       opts.Referer,
		http:          hc,
	}, nil
}

// ListProducts fetches one listing page and returns the decoded body.
func (c *Client) ListProducts(ctx context.Context, target Target, page int, f Filters) (map[string]any, FetchMeta, error) {
	start := time.Now()
	u := c.baseURL + target.path() + "?" + f.Query(target.Kind, page).Encode()
	body, status, err := c.doGET(ctx, u, "application/json")
	meta := FetchMeta{StatusCode: status, Latency: time.Since(start)}
	if err != nil {
		return nil, meta, &TransportError{Page: page, Status: status, Err: err}
	}
	doc, err := decodeObject(body)
	if err != nil {
		return nil, meta, &MalformedError{Page: page, Err: err}
	}
	return doc, meta, nil
}

// ProductDetail fetches the detail document for slug. A nil map without
// error means the page exists but carries no product.
func (c *Client) ProductDetail(ctx context.Context, slug string) (map[string]any, FetchMeta, error) {
	start := time.Now()
	if strings.TrimSpace(slug) == "" {
		return nil, FetchMeta{Latency: time.Since(start)}, &TransportError{Err: errors.New("slug is required")}
	}
	q := url.Values{}
	q.Set("slug", slug)
	u := fmt.Sprintf("%s/_next/data/%s/chi-tiet-san-pham/%s.json?%s",
		c.detailBaseURL, url.PathEscape(c.buildID), url.PathEscape(slug), q.Encode())
	body, status, err := c.doGET(ctx, u, "*/*")
	meta := FetchMeta{StatusCode: status, Latency: time.Since(start)}
	if err != nil {
		return nil, meta, &TransportError{Slug: slug, Status: status, Err: err}
	}
	doc, err := decodeObject(body)
	if err != nil {
		return nil, meta, &MalformedError{Slug: slug, Err: err}
	}
	props, _ := doc["pageProps"].(map[string]any)
	product, _ := props["product"].(map[string]any)
	if len(product) == 0 {
		return nil, meta, nil
	}
	return product, meta, nil
}

func (c *Client) doGET(ctx context.Context, u string, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	status := resp.StatusCode
	b, err := io.ReadAll(resp.Body)
	if status < 200 || status >= 300 {
		return nil, status, fmt.Errorf("http status %d", status)
	}
	if err != nil {
		return nil, status, fmt.Errorf("read body: %w", err)
	}
	return b, status, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty body")
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}
