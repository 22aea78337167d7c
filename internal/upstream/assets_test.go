package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"assetgate/internal/clock"
)

func newTestCloud(t *testing.T, handler http.Handler) *Cloud {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := newTestClient(t)
	poller := NewPoller(client, PollerConfig{Clock: clock.Fake(time.Unix(0, 0))})
	return NewCloud(client, poller, srv.URL+"/")
}

func TestCloudListInventoryFollowsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cloud/v2/users/42/inventory-items", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != inventoryFilter {
			t.Errorf("unexpected filter %q", got)
		}
		if got := r.URL.Query().Get("maxPageSize"); got != "100" {
			t.Errorf("unexpected page size %q", got)
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			_, _ = w.Write([]byte(`{"inventoryItems":[{"assetDetails":{"assetId":"10"}},{"gamePassDetails":{}}],"nextPageToken":"p2"}`))
		case "p2":
			_, _ = w.Write([]byte(`{"inventoryItems":[{"assetDetails":{"assetId":"11"}}],"nextPageToken":""}`))
		default:
			t.Errorf("unexpected page token")
		}
	})

	ids, err := newTestCloud(t, mux).ListInventory(context.Background(), 42)
	if err != nil {
		t.Fatalf("list inventory: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 11}, ids); diff != "" {
		t.Fatalf("inventory mismatch (-want +got):\n%s", diff)
	}
}

func TestCloudCreateAssetSendsMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assets/v1/assets", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		var meta CreateAssetRequest
		if err := json.Unmarshal([]byte(r.FormValue("request")), &meta); err != nil {
			t.Errorf("decode request part: %v", err)
		}
		if meta.AssetType != "Model" || meta.CreationContext.Creator.UserID != 9 {
			t.Errorf("unexpected metadata: %+v", meta)
		}
		file, header, err := r.FormFile("fileContent")
		if err != nil {
			t.Errorf("file part: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != modelFileName || header.Header.Get("Content-Type") != modelContentType {
			t.Errorf("unexpected file header: %v", header.Header)
		}
		if string(data) != "MODEL" {
			t.Errorf("unexpected file content %q", data)
		}
		_, _ = w.Write([]byte(`{"path":"operations/abc","operationId":"abc","done":false}`))
	})

	form, err := NewAssetForm(CreateAssetRequest{
		AssetType:       "Model",
		DisplayName:     "User Upload 0",
		Description:     "1,2",
		CreationContext: CreationContext{Creator: Creator{UserID: 9}},
	}, []byte("MODEL"))
	if err != nil {
		t.Fatalf("new form: %v", err)
	}

	op, err := newTestCloud(t, mux).CreateAsset(context.Background(), form)
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	if op.Path != "operations/abc" || op.Done {
		t.Fatalf("unexpected operation: %+v", op)
	}
}

func TestCloudUpdateAssetUsesUpdateMask(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /assets/v1/assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "123" {
			t.Errorf("unexpected id %s", r.PathValue("id"))
		}
		if r.URL.Query().Get("updateMask") != "description" {
			t.Errorf("unexpected update mask %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"path":"operations/u1","done":true,"response":{"assetId":123}}`))
	})

	form, err := NewAssetForm(UpdateAssetRequest{AssetID: 123, Description: "1"}, []byte("x"))
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	op, err := newTestCloud(t, mux).UpdateAsset(context.Background(), 123, form)
	if err != nil {
		t.Fatalf("update asset: %v", err)
	}
	if !op.Done || op.Response == nil || op.Response.AssetID != 123 {
		t.Fatalf("unexpected operation: %+v", op)
	}
}

func TestCloudGrantUse(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("PATCH /asset-permissions-api/v1/assets/permissions", func(w http.ResponseWriter, r *http.Request) {
			var req permissionGrantRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode grant: %v", err)
			}
			want := permissionGrantRequest{
				SubjectType: "Universe",
				SubjectID:   "77",
				Action:      "Use",
				Requests:    []permissionAssetGrant{{GrantToDependencies: true, AssetID: 555}},
			}
			if diff := cmp.Diff(want, req); diff != "" {
				t.Errorf("grant mismatch (-want +got):\n%s", diff)
			}
			_, _ = w.Write([]byte(`{"successAssetIds":["555"],"errors":[]}`))
		})
		if err := newTestCloud(t, mux).GrantUse(context.Background(), 77, 555); err != nil {
			t.Fatalf("grant: %v", err)
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("PATCH /asset-permissions-api/v1/assets/permissions", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"successAssetIds":[],"errors":[{"assetId":"555","code":"PermissionDenied"}]}`))
		})
		err := newTestCloud(t, mux).GrantUse(context.Background(), 77, 555)
		var grantErr *GrantError
		if !errors.As(err, &grantErr) {
			t.Fatalf("expected GrantError, got %v", err)
		}
		if grantErr.Message != "assetId: 555; code: PermissionDenied" {
			t.Fatalf("unexpected message %q", grantErr.Message)
		}
	})
}

func TestCloudFetchContent(t *testing.T) {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("GET /asset-delivery-api/v1/assetId/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("AssetType") != "Model" {
			t.Errorf("expected AssetType header")
		}
		_, _ = w.Write([]byte(`{"location":"` + base + `/cdn/blob"}`))
	})
	mux.HandleFunc("GET /cdn/blob", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("RBXM"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	client := newTestClient(t)
	cloud := NewCloud(client, NewPoller(client, PollerConfig{}), srv.URL)

	location, err := cloud.AssetLocation(context.Background(), 5)
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	data, err := cloud.DownloadContent(context.Background(), location)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "RBXM" {
		t.Fatalf("expected RBXM, got %q", data)
	}

	if _, err := cloud.DownloadContent(context.Background(), base+"/cdn/"); err == nil {
		t.Fatal("expected error for location ending in separator")
	}
}

func TestAssetIDAcceptsNumberOrString(t *testing.T) {
	var got struct {
		A AssetID `json:"a"`
		B AssetID `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":12,"b":"34"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.A != 12 || got.B != 34 {
		t.Fatalf("unexpected ids: %+v", got)
	}
}
