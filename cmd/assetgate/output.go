package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"assetgate/internal/api"
	"assetgate/internal/format"
)

var (
	outputFormatter format.Formatter = format.JSONFormatter{}
	tableFormatter  format.Formatter = format.TableFormatter{}
)

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeTable(table *format.Table) error {
	return tableFormatter.Write(os.Stdout, table)
}

func keyListTable(keys api.KeyListResponse) *format.Table {
	names := make([]string, 0, len(keys))
	for key := range keys {
		names = append(names, key)
	}
	sort.Strings(names)

	table := &format.Table{Header: []string{"KEY", "USERS", "ASSETS"}}
	for _, key := range names {
		summary := keys[key]
		table.Rows = append(table.Rows, []string{key, summary.UserIDs, summary.AssetIDs})
	}
	return table
}

func revisionTable(revs []api.RevisionResponse) *format.Table {
	table := &format.Table{Header: []string{"ID", "DIGEST", "SIZE", "CREATED"}}
	for _, rev := range revs {
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(rev.ID, 10),
			rev.Digest,
			strconv.FormatInt(rev.SizeBytes, 10),
			rev.CreatedAt,
		})
	}
	return table
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
