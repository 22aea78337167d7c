package gate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"assetgate/internal/auth"
	"assetgate/internal/clock"
	"assetgate/internal/models"
	"assetgate/internal/store"
)

type countingStore struct {
	store.KeyStore
	lookups int
}

func (c *countingStore) GetGrant(ctx context.Context, key string) (*models.Grant, error) {
	c.lookups++
	return c.KeyStore.GetGrant(ctx, key)
}

func newTestGate(t *testing.T) (*Gate, *countingStore) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "gate.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	counting := &countingStore{KeyStore: st}
	return New(counting, Config{Clock: clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}), counting
}

func mustKey(t *testing.T) string {
	t.Helper()
	key, err := auth.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestLookupIsSymmetricForUnknownAndMalformedKeys(t *testing.T) {
	g, counting := newTestGate(t)
	ctx := context.Background()

	unknown := mustKey(t)
	grant, ok, err := g.Lookup(ctx, unknown)
	if err != nil {
		t.Fatalf("lookup unknown: %v", err)
	}
	if ok {
		t.Fatal("expected unknown key to be rejected")
	}
	if counting.lookups != 1 {
		t.Fatalf("expected one storage lookup for well-formed key, got %d", counting.lookups)
	}

	for _, malformed := range []string{"", "short", unknown + "x", " " + unknown[1:], "not/a/valid/key/at/all/but/still/43/chars!!"} {
		got, gotOK, err := g.Lookup(ctx, malformed)
		if err != nil {
			t.Fatalf("lookup %q: %v", malformed, err)
		}
		if gotOK != ok {
			t.Fatalf("expected ok=%v for %q, got %v", ok, malformed, gotOK)
		}
		if diff := cmp.Diff(grant, got); diff != "" {
			t.Fatalf("grant shape differs for %q (-unknown +malformed):\n%s", malformed, diff)
		}
	}
	if counting.lookups != 1 {
		t.Fatalf("malformed keys must not reach storage, got %d lookups", counting.lookups)
	}
}

func TestCreateSaveLookup(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	key, err := g.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !auth.IsValidKey(key) {
		t.Fatalf("created key %q is not well formed", key)
	}

	if err := g.Save(ctx, key, []int64{1, 2}, []int64{10}); err != nil {
		t.Fatalf("save: %v", err)
	}
	grant, ok, err := g.Lookup(ctx, key)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	want := models.Grant{Key: key, Users: []int64{1, 2}, Assets: []int64{10}}
	if diff := cmp.Diff(want, grant); diff != "" {
		t.Fatalf("grant mismatch (-want +got):\n%s", diff)
	}
	if !g.Authorizes(grant, 10) || g.Authorizes(grant, 11) {
		t.Fatal("unexpected authorization result")
	}
}

func TestSaveRejectsTooManyAssets(t *testing.T) {
	g, _ := newTestGate(t)
	key := mustKey(t)

	err := g.Save(context.Background(), key, []int64{1}, []int64{1, 2, 3, 4, 5, 6})
	if !errors.Is(err, ErrTooManyAssets) {
		t.Fatalf("expected ErrTooManyAssets, got %v", err)
	}
	if err := g.Save(context.Background(), key, []int64{1}, []int64{1, 2, 3, 4, 5, 5}); err != nil {
		t.Fatalf("duplicates should count once: %v", err)
	}
}

func TestCheckQuota(t *testing.T) {
	g, _ := newTestGate(t)
	if err := g.CheckQuota(models.Grant{Assets: []int64{1, 2, 3, 4}}); err != nil {
		t.Fatalf("expected room for a fifth asset: %v", err)
	}
	if err := g.CheckQuota(models.Grant{Assets: []int64{1, 2, 3, 4, 5}}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestUpdateKeepsOmittedFields(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	key := mustKey(t)

	if err := g.Save(ctx, key, []int64{1}, []int64{10, 11}); err != nil {
		t.Fatalf("save: %v", err)
	}
	updated, err := g.Update(ctx, key, []int64{7, 8}, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 11}, updated.Assets); diff != "" {
		t.Fatalf("assets should be kept (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{7, 8}, updated.Users); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}

	if _, err := g.Update(ctx, mustKey(t), nil, nil); !errors.Is(err, store.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestAppendAndDelete(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	key := mustKey(t)

	if err := g.Save(ctx, key, []int64{1}, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := g.AppendAsset(ctx, key, 555); err != nil {
		t.Fatalf("append: %v", err)
	}
	ids, err := g.AssetIDs(ctx)
	if err != nil {
		t.Fatalf("asset ids: %v", err)
	}
	if diff := cmp.Diff([]int64{555}, ids); diff != "" {
		t.Fatalf("asset ids mismatch (-want +got):\n%s", diff)
	}

	deleted, err := g.Delete(ctx, key)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := g.Lookup(ctx, key); ok {
		t.Fatal("expected deleted key to be unknown")
	}
	if deleted, _ := g.Delete(ctx, "malformed"); deleted {
		t.Fatal("malformed key cannot be deleted")
	}
}
