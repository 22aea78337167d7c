package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"assetgate/internal/updatebody"
)

const (
	defaultHTTPTimeout  = 10 * time.Minute
	httpTimeoutEnvKey   = "ASSETGATE_HTTP_TIMEOUT"
	keyEnvKey           = "ASSETGATE_KEY"
	adminPasswordEnvKey = "ASSETGATE_ADMIN_PASSWORD"
)

// Client is a simple HTTP client for the assetgate API.
type Client struct {
	baseURL       string
	http          *http.Client
	key           string
	adminPassword string
}

// NewClient creates a new API client. The bearer key and admin password are
// read from the environment and can be replaced with SetKey and
// SetAdminPassword.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: httpTimeoutFromEnv()},
		key:           strings.TrimSpace(os.Getenv(keyEnvKey)),
		adminPassword: os.Getenv(adminPasswordEnvKey),
	}
}

func (c *Client) SetKey(key string) {
	c.key = strings.TrimSpace(key)
}

func (c *Client) SetAdminPassword(password string) {
	c.adminPassword = password
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil, nil)
}

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", "", nil, nil, &resp)
	return resp, err
}

// ListKeys returns every key with its users and assets.
func (c *Client) ListKeys(ctx context.Context) (KeyListResponse, error) {
	var resp KeyListResponse
	err := c.do(ctx, http.MethodGet, "/key", c.adminPassword, nil, nil, &resp)
	return resp, err
}

// CreateKey asks the server for a fresh key.
func (c *Client) CreateKey(ctx context.Context) (string, error) {
	var key string
	err := c.do(ctx, http.MethodPost, "/key", c.adminPassword, nil, nil, &key)
	return key, err
}

func (c *Client) UpdateKey(ctx context.Context, key string, req KeyUpdateRequest) (KeyResponse, error) {
	var resp KeyResponse
	err := c.do(ctx, http.MethodPatch, "/key/"+url.PathEscape(key), c.adminPassword, jsonBody(req), nil, &resp)
	return resp, err
}

func (c *Client) DeleteKey(ctx context.Context, key string) (KeyDeleteResponse, error) {
	var resp KeyDeleteResponse
	err := c.do(ctx, http.MethodDelete, "/key/"+url.PathEscape(key), c.adminPassword, nil, nil, &resp)
	return resp, err
}

// ListAssets returns the asset ids the bearer key may upload to.
func (c *Client) ListAssets(ctx context.Context) ([]int64, error) {
	var resp []int64
	err := c.do(ctx, http.MethodGet, "/assets", c.key, nil, nil, &resp)
	return resp, err
}

// CreateAsset uploads model bytes as a new asset and returns its id.
func (c *Client) CreateAsset(ctx context.Context, content []byte) (int64, error) {
	var id int64
	err := c.do(ctx, http.MethodPost, "/assets", c.key, rawBody(content), nil, &id)
	return id, err
}

// UpdateAsset replaces the model bytes of assetID.
func (c *Client) UpdateAsset(ctx context.Context, assetID int64, content []byte) (int64, error) {
	var id int64
	err := c.do(ctx, http.MethodPatch, "/assets", c.key, rawBody(updatebody.Encode(assetID, content)), nil, &id)
	return id, err
}

// AssetContent streams the decoded model bytes of assetID to w.
func (c *Client) AssetContent(ctx context.Context, assetID int64, w io.Writer) error {
	path := "/asset-content/" + strconv.FormatInt(assetID, 10)
	return c.do(ctx, http.MethodGet, path, c.key, nil, w, nil)
}

func (c *Client) AssetRevisions(ctx context.Context, assetID int64, limit int) ([]RevisionResponse, error) {
	path := "/asset-revisions/" + strconv.FormatInt(assetID, 10)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp []RevisionResponse
	err := c.do(ctx, http.MethodGet, path, c.key, nil, nil, &resp)
	return resp, err
}

type requestBody struct {
	payload     []byte
	contentType string
	err         error
}

func jsonBody(v any) *requestBody {
	payload, err := json.Marshal(v)
	return &requestBody{payload: payload, contentType: "application/json", err: err}
}

func rawBody(data []byte) *requestBody {
	return &requestBody{payload: data, contentType: "application/octet-stream"}
}

// do sends one request. A non-nil raw receives the response body verbatim;
// otherwise out, when set, receives the decoded JSON.
func (c *Client) do(ctx context.Context, method, path, bearer string, body *requestBody, raw io.Writer, out any) error {
	var reader io.Reader
	if body != nil {
		if body.err != nil {
			return body.err
		}
		reader = bytes.NewReader(body.payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if raw != nil {
		_, err = io.Copy(raw, resp.Body)
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
