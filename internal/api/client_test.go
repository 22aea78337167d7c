package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	t.Setenv(keyEnvKey, "")
	t.Setenv(adminPasswordEnvKey, "")
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL + "/")
	client.SetKey("user-key")
	client.SetAdminPassword("admin-secret")
	return client
}

func TestClientUsesAdminPasswordForKeyRoutes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /key", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer admin-secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		_, _ = w.Write([]byte(`{"k1":{"userIds":"1,2","assetIds":"3"}}`))
	})
	mux.HandleFunc("PATCH /key/{key}", func(w http.ResponseWriter, r *http.Request) {
		var req KeyUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.UserIDs != nil {
			t.Errorf("expected users to be omitted, got %v", *req.UserIDs)
		}
		if req.AssetIDs == nil || len(*req.AssetIDs) != 0 {
			t.Errorf("expected explicit empty assets, got %v", req.AssetIDs)
		}
		_ = json.NewEncoder(w).Encode(KeyResponse{Key: r.PathValue("key"), UserIDs: []int64{1}, AssetIDs: []int64{}})
	})

	client := newTestClient(t, mux)
	keys, err := client.ListKeys(context.Background())
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	want := KeyListResponse{"k1": {UserIDs: "1,2", AssetIDs: "3"}}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	empty := []int64{}
	resp, err := client.UpdateKey(context.Background(), "k1", KeyUpdateRequest{AssetIDs: &empty})
	if err != nil {
		t.Fatalf("update key: %v", err)
	}
	if resp.Key != "k1" {
		t.Fatalf("expected key k1, got %q", resp.Key)
	}
}

func TestClientSendsUpdatePrefix(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /assets", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer user-key" {
			t.Errorf("unexpected authorization %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) < 8 {
			t.Errorf("body too short: %d", len(body))
			return
		}
		id := math.Float64frombits(binary.LittleEndian.Uint64(body[:8]))
		if id != 555 || string(body[8:]) != "model" {
			t.Errorf("unexpected payload id=%v content=%q", id, body[8:])
		}
		_, _ = w.Write([]byte("555"))
	})

	id, err := newTestClient(t, mux).UpdateAsset(context.Background(), 555, []byte("model"))
	if err != nil {
		t.Fatalf("update asset: %v", err)
	}
	if id != 555 {
		t.Fatalf("expected 555, got %d", id)
	}
}

func TestClientStreamsContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /asset-content/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("RBXM" + r.PathValue("id")))
	})

	var buf bytes.Buffer
	if err := newTestClient(t, mux).AssetContent(context.Background(), 7, &buf); err != nil {
		t.Fatalf("content: %v", err)
	}
	if buf.String() != "RBXM7" {
		t.Fatalf("expected RBXM7, got %q", buf.String())
	}
}

func TestClientDecodesErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"asset limit reached for this key","code":"quota_exceeded","error_code":3004}`))
	})
	mux.HandleFunc("GET /assets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := newTestClient(t, mux)
	_, err := client.CreateAsset(context.Background(), []byte("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusPaymentRequired || apiErr.ErrorCode != 3004 || apiErr.Code != "quota_exceeded" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}

	_, err = client.ListAssets(context.Background())
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
}
