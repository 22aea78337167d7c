package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"assetgate/internal/api"
	"assetgate/internal/updatebody"
)

func TestCreateAssetEndToEnd(t *testing.T) {
	env := newTestEnv(t, []int64{1, 2}, nil)

	w := env.do(t, http.MethodPost, "/assets", env.key, []byte("MODEL"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if id := decodeBody[int64](t, w); id != 555 {
		t.Fatalf("expected asset 555, got %d", id)
	}
	if got := env.cloud.polls.Load(); got != 2 {
		t.Fatalf("expected 2 operation fetches, got %d", got)
	}
	if diff := cmp.Diff([]int64{555}, env.cloud.granted); diff != "" {
		t.Fatalf("granted assets mismatch (-want +got):\n%s", diff)
	}

	if len(env.cloud.metadata) != 1 {
		t.Fatalf("expected one upload, got %d", len(env.cloud.metadata))
	}
	meta := env.cloud.metadata[0]
	if meta["displayName"] != "User Upload 1" || meta["description"] != "1,2" || meta["assetType"] != "Model" {
		t.Fatalf("unexpected upload metadata: %v", meta)
	}

	w = env.do(t, http.MethodGet, "/assets", env.key, nil)
	if diff := cmp.Diff([]int64{555}, decodeBody[[]int64](t, w)); diff != "" {
		t.Fatalf("listed assets mismatch (-want +got):\n%s", diff)
	}

	w = env.do(t, http.MethodGet, "/asset-revisions/555", env.key, nil)
	revs := decodeBody[[]api.RevisionResponse](t, w)
	if len(revs) != 1 || revs[0].SizeBytes != int64(len("MODEL")) || revs[0].AssetID != 555 {
		t.Fatalf("unexpected revisions: %+v", revs)
	}

	w = env.do(t, http.MethodGet, "/health", "", nil)
	if health := decodeBody[api.HealthResponse](t, w); health.Assets != 2 {
		t.Fatalf("expected 2 cached assets, got %d", health.Assets)
	}
}

func TestCreateAssetAtLimitMakesNoUpstreamCalls(t *testing.T) {
	env := newTestEnv(t, []int64{1}, []int64{1, 2, 3, 4, 5})

	w := env.do(t, http.MethodPost, "/assets", env.key, []byte("MODEL"))
	expectError(t, w, http.StatusPaymentRequired, ErrCodeQuotaExceeded)
	if got := env.cloud.calls.Load(); got != 0 {
		t.Fatalf("expected no upstream calls, got %d", got)
	}
}

func TestCreateAssetReportsUpstreamError(t *testing.T) {
	env := newTestEnv(t, []int64{1}, nil)
	env.cloud.createStatus = http.StatusBadRequest
	env.cloud.createBody = `{"message":"Asset name is moderated"}`

	w := env.do(t, http.MethodPost, "/assets", env.key, []byte("MODEL"))
	resp := expectError(t, w, http.StatusInternalServerError, ErrCodeUpstream)
	if resp.Error != "Error starting upload (400): Asset name is moderated" {
		t.Fatalf("unexpected message %q", resp.Error)
	}
	if grant, _, _ := env.gate.Lookup(t.Context(), env.key); len(grant.Assets) != 0 {
		t.Fatalf("failed upload must not be recorded, got %v", grant.Assets)
	}
}

func TestCreateAssetRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t, []int64{1}, nil, func(cfg *Config) { cfg.MaxRequestBytes = 16 })

	w := env.do(t, http.MethodPost, "/assets", env.key, make([]byte, 17))
	expectError(t, w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge)
	if got := env.cloud.calls.Load(); got != 0 {
		t.Fatalf("expected no upstream calls, got %d", got)
	}
}

func TestUpdateAsset(t *testing.T) {
	env := newTestEnv(t, []int64{1}, []int64{555})

	t.Run("owned asset", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/assets", env.key, updatebody.Encode(555, []byte("v2")))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if id := decodeBody[int64](t, w); id != 555 {
			t.Fatalf("expected asset 555, got %d", id)
		}
		meta := env.cloud.metadata[len(env.cloud.metadata)-1]
		if meta["assetId"] != float64(555) || meta["description"] != "1" {
			t.Fatalf("unexpected update metadata: %v", meta)
		}
	})

	t.Run("foreign asset", func(t *testing.T) {
		before := env.cloud.calls.Load()
		w := env.do(t, http.MethodPatch, "/assets", env.key, updatebody.Encode(556, []byte("v2")))
		expectError(t, w, http.StatusForbidden, ErrCodeForbidden)
		if got := env.cloud.calls.Load(); got != before {
			t.Fatalf("expected no upstream calls, got %d", got-before)
		}
	})

	t.Run("short body", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/assets", env.key, []byte("abc"))
		expectError(t, w, http.StatusBadRequest, ErrCodeInvalidPayload)
	})
}

func TestAssetContent(t *testing.T) {
	env := newTestEnv(t, []int64{1}, []int64{555})
	env.cloud.content["555"] = []byte("RBXM")

	w := env.do(t, http.MethodGet, "/asset-content/555", env.key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "RBXM" {
		t.Fatalf("expected RBXM, got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	expectError(t, env.do(t, http.MethodGet, "/asset-content/abc", env.key, nil), http.StatusBadRequest, ErrCodeInvalidID)
	expectError(t, env.do(t, http.MethodGet, "/asset-content/556", env.key, nil), http.StatusForbidden, ErrCodeForbidden)
}

func TestAssetRoutesRequireKey(t *testing.T) {
	env := newTestEnv(t, []int64{1}, nil)

	expectError(t, env.do(t, http.MethodGet, "/assets", "", nil), http.StatusUnauthorized, ErrCodeUnauthorized)
	expectError(t, env.do(t, http.MethodGet, "/assets", "not-a-key", nil), http.StatusForbidden, ErrCodeForbidden)
	expectError(t, env.do(t, http.MethodPost, "/assets", "", []byte("x")), http.StatusUnauthorized, ErrCodeUnauthorized)

	w := env.do(t, http.MethodGet, "/assets", env.key, nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]\n" {
		t.Fatalf("expected empty array, got %d %q", w.Code, w.Body.String())
	}
}

func TestRejectedKeysAreRateLimited(t *testing.T) {
	env := newTestEnv(t, []int64{1}, nil, func(cfg *Config) {
		cfg.AuthMaxFailures = 2
		cfg.AuthWindow = time.Minute
		cfg.AuthBlock = time.Minute
	})

	for i := 0; i < 2; i++ {
		expectError(t, env.do(t, http.MethodGet, "/assets", "guess", nil), http.StatusForbidden, ErrCodeForbidden)
	}
	expectError(t, env.do(t, http.MethodGet, "/assets", env.key, nil), http.StatusTooManyRequests, ErrCodeResourceExhausted)

	env.clock.Advance(time.Minute + time.Second)
	if w := env.do(t, http.MethodGet, "/assets", env.key, nil); w.Code != http.StatusOK {
		t.Fatalf("expected block to lapse, got %d", w.Code)
	}
}
