package format

import (
	"bytes"
	"testing"
)

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Write(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "{\"a\":1}\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	if err := (JSONFormatter{Indent: true}).Write(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write indented: %v", err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Fatalf("unexpected indented output %q", buf.String())
	}
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	table := &Table{
		Header: []string{"KEY", "USERS"},
		Rows:   [][]string{{"abc", "1,2"}, {"longer-key", ""}},
	}
	if err := (TableFormatter{}).Write(&buf, table); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "KEY         USERS\nabc         1,2\nlonger-key  \n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}

	if err := (TableFormatter{}).Write(&buf, "nope"); err == nil {
		t.Fatal("expected error for non-table payload")
	}
}
