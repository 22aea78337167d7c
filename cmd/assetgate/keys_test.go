package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func parseKeyUpdateFlags(t *testing.T, args ...string) (*pflag.FlagSet, *keyUpdateOptions) {
	t.Helper()
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	opts := &keyUpdateOptions{}
	bindKeyUpdateFlags(fs, opts)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs, opts
}

func TestBuildKeyUpdateRequest(t *testing.T) {
	fs, opts := parseKeyUpdateFlags(t, "--users", "1,2", "--clear-assets")
	req, err := buildKeyUpdateRequest(fs, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.UserIDs == nil || req.AssetIDs == nil {
		t.Fatalf("expected both fields set, got %+v", req)
	}
	if diff := cmp.Diff([]int64{1, 2}, *req.UserIDs); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
	if len(*req.AssetIDs) != 0 {
		t.Fatalf("expected empty assets, got %v", *req.AssetIDs)
	}
}

func TestBuildKeyUpdateRequestOmitsUnchangedFields(t *testing.T) {
	fs, opts := parseKeyUpdateFlags(t, "--assets", "555")
	req, err := buildKeyUpdateRequest(fs, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.UserIDs != nil {
		t.Fatalf("expected users to be omitted, got %v", *req.UserIDs)
	}
	if diff := cmp.Diff([]int64{555}, *req.AssetIDs); diff != "" {
		t.Fatalf("assets mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildKeyUpdateRequestErrors(t *testing.T) {
	fs, opts := parseKeyUpdateFlags(t)
	if _, err := buildKeyUpdateRequest(fs, opts); err == nil {
		t.Fatal("expected error with no fields")
	}

	fs, opts = parseKeyUpdateFlags(t, "--users", "1", "--clear-users")
	if _, err := buildKeyUpdateRequest(fs, opts); err == nil {
		t.Fatal("expected error for conflicting user flags")
	}
}
