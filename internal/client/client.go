package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	Status     string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Status, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	headerName string
	httpClient *http.Client
}

func New(baseURL string, apiKey string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		headerName: "X-API-Key",
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *Client) Classify(ctx context.Context, rawURL, baseURL string) (types.Verdict, error) {
	var out types.Verdict
	req := types.ClassifyRequest{URL: rawURL, BaseURL: baseURL}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/classify", nil, req, &out)
	return out, err
}

func (c *Client) ClassifyBatch(ctx context.Context, urls []string, baseURL string) (types.ClassifyBatchResponse, error) {
	var out types.ClassifyBatchResponse
	req := types.ClassifyBatchRequest{URLs: urls, BaseURL: baseURL}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/classify/batch", nil, req, &out)
	return out, err
}

func (c *Client) Resolve(ctx context.Context, rawURL string) (types.ResolveResponse, error) {
	var out types.ResolveResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/resolve", nil, types.ResolveRequest{URL: rawURL}, &out)
	return out, err
}

func (c *Client) Scan(ctx context.Context, req types.ScanRequest) (types.Snapshot, error) {
	var out types.Snapshot
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/scans", nil, req, &out)
	return out, err
}

func (c *Client) LatestScan(ctx context.Context) (types.Snapshot, error) {
	var out types.Snapshot
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/scans/latest", nil, nil, &out)
	return out, err
}

func (c *Client) GetScan(ctx context.Context, id string) (types.Snapshot, error) {
	var out types.Snapshot
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/scans/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) FeedStatus(ctx context.Context) (types.FeedStatus, error) {
	var out types.FeedStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/feed", nil, nil, &out)
	return out, err
}

func (c *Client) RefreshFeed(ctx context.Context) (types.FeedStatus, error) {
	var out types.FeedStatus
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/feed/refresh", nil, nil, &out)
	return out, err
}

func (c *Client) GetSettings(ctx context.Context) (types.Settings, error) {
	var out types.Settings
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/settings", nil, nil, &out)
	return out, err
}

func (c *Client) PutSettings(ctx context.Context, patch types.SettingsPatch) (types.Settings, error) {
	var out types.Settings
	err := c.doJSON(ctx, http.MethodPut, "/api/v1/settings", nil, patch, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	c.addAuth(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &HTTPError{Method: method, Path: path, Status: resp.Status, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set(c.headerName, c.apiKey)
	}
}
