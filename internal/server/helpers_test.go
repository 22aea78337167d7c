package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assetgate/internal/api"
	"assetgate/internal/auth"
	"assetgate/internal/blobstore"
	"assetgate/internal/clock"
	"assetgate/internal/gate"
	"assetgate/internal/store"
	"assetgate/internal/upstream"
	"assetgate/internal/workflow"
)

const (
	testUploaderID = 900
	testUniverseID = 77
	testAdminPass  = "correct horse battery"
)

// fakeCloud stands in for the asset service. Created assets get id 555 after
// one pending poll.
type fakeCloud struct {
	calls atomic.Int64
	polls atomic.Int64

	mu           sync.Mutex
	createStatus int
	createBody   string
	metadata     []map[string]any
	content      map[string][]byte
	granted      []int64
}

func (f *fakeCloud) handler(baseURL func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assets/v1/assets", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.mu.Lock()
		status, body := f.createStatus, f.createBody
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		f.recordMetadata(r)
		_, _ = w.Write([]byte(`{"path":"operations/create-1","operationId":"create-1","done":false}`))
	})
	mux.HandleFunc("PATCH /assets/v1/assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.recordMetadata(r)
		id := r.PathValue("id")
		fmt.Fprintf(w, `{"path":"operations/update-%s","done":true,"response":{"assetId":%s}}`, id, id)
	})
	mux.HandleFunc("GET /assets/v1/operations/{op}", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.polls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"path":"operations/create-1","done":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"path":"operations/create-1","done":true,"response":{"assetId":"555","displayName":"User Upload"}}`))
	})
	mux.HandleFunc("PATCH /asset-permissions-api/v1/assets/permissions", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		var req struct {
			Requests []struct {
				AssetID int64 `json:"assetId"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		for _, grant := range req.Requests {
			f.granted = append(f.granted, grant.AssetID)
		}
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"successAssetIds":["555"],"errors":[]}`))
	})
	mux.HandleFunc("GET /asset-delivery-api/v1/assetId/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		fmt.Fprintf(w, `{"location":"%s/cdn/%s"}`, baseURL(), r.PathValue("id"))
	})
	mux.HandleFunc("GET /cdn/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.mu.Lock()
		data := f.content[r.PathValue("id")]
		f.mu.Unlock()
		_, _ = w.Write(data)
	})
	return mux
}

func (f *fakeCloud) recordMetadata(r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(r.FormValue("request")), &meta); err != nil {
		return
	}
	f.mu.Lock()
	f.metadata = append(f.metadata, meta)
	f.mu.Unlock()
}

type testEnv struct {
	handler http.Handler
	gate    *gate.Gate
	cloud   *fakeCloud
	clock   *clock.FakeClock
	key     string
}

type envOption func(*Config)

func newTestEnv(t *testing.T, users, assets []int64, opts ...envOption) *testEnv {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(dir, "assetgate.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	keys := gate.New(st, gate.Config{Clock: clk, Logger: logger})
	key, err := auth.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := keys.Save(context.Background(), key, users, assets); err != nil {
		t.Fatalf("save key: %v", err)
	}

	cloud := &fakeCloud{content: map[string][]byte{}}
	var upstreamURL string
	upstreamSrv := httptest.NewServer(cloud.handler(func() string { return upstreamURL }))
	t.Cleanup(upstreamSrv.Close)
	upstreamURL = upstreamSrv.URL

	client, err := upstream.NewClient(upstream.Config{APIKey: "cloud-secret", Logger: logger})
	if err != nil {
		t.Fatalf("new upstream client: %v", err)
	}
	poller := upstream.NewPoller(client, upstream.PollerConfig{Interval: time.Millisecond, Timeout: 5 * time.Second, Logger: logger})
	cloudAPI := upstream.NewCloud(client, poller, upstreamURL)

	blobs, err := blobstore.NewLocalCAS(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("new blob store: %v", err)
	}
	svc := workflow.New(cloudAPI, keys, workflow.NewAssetCache(1), workflow.Config{
		UploaderUserID: testUploaderID,
		UniverseID:     testUniverseID,
		Archive:        workflow.NewArchive(blobs, st, clk, logger),
		Logger:         logger,
	})

	cfg := Config{
		Admin:  auth.AdminCredential{Password: testAdminPass},
		Clock:  clk,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv := New(svc, keys, cfg)

	return &testEnv{handler: srv.Handler(), gate: keys, cloud: cloud, clock: clk, key: key}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path, bearer string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return e.do(t, method, path, bearer, data)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status, errCode int) api.ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	resp := decodeBody[api.ErrorResponse](t, w)
	if resp.ErrorCode != errCode {
		t.Fatalf("expected error_code %d, got %d (%s)", errCode, resp.ErrorCode, resp.Error)
	}
	return resp
}
