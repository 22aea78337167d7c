// Package format renders command output.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// Table is a header plus rows of cells rendered in aligned columns.
type Table struct {
	Header []string
	Rows   [][]string
}

// TableFormatter writes *Table payloads as tab-aligned text.
type TableFormatter struct{}

func (TableFormatter) Write(w io.Writer, payload any) error {
	table, ok := payload.(*Table)
	if !ok {
		return fmt.Errorf("table formatter: unsupported payload %T", payload)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(table.Header) > 0 {
		fmt.Fprintln(tw, strings.Join(table.Header, "\t"))
	}
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
