package models

import "testing"

func TestGrantHasAsset(t *testing.T) {
	grant := Grant{Key: "k", Assets: []int64{10, 20}}
	if !grant.HasAsset(20) {
		t.Fatal("expected asset 20 to be granted")
	}
	if grant.HasAsset(30) {
		t.Fatal("expected asset 30 to be rejected")
	}
	if (Grant{}).HasAsset(0) {
		t.Fatal("expected empty grant to hold no assets")
	}
}
