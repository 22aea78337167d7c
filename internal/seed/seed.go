// Package seed imports key grants from a YAML or JSONC file.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Entry is one key in a seed file. An empty Key asks for a generated one.
type Entry struct {
	Key    string  `yaml:"key" json:"key"`
	Users  []int64 `yaml:"users" json:"users"`
	Assets []int64 `yaml:"assets" json:"assets"`
}

// File is the top-level seed document.
type File struct {
	Keys []Entry `yaml:"keys" json:"keys"`
}

// Format names a seed file encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSONC Format = "jsonc"
)

// FormatFromPath picks a format by file extension. Unknown extensions are
// treated as YAML, which also accepts plain JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// Parse decodes data in the given format.
func Parse(data []byte, format Format) (*File, error) {
	var file File
	switch format {
	case FormatJSONC:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing seed: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown seed format %q", format)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// ReadFile reads and parses a seed file, choosing the format from its
// extension.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	file, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

func (f *File) validate() error {
	var errs []error
	seen := make(map[string]int, len(f.Keys))
	for i, entry := range f.Keys {
		key := strings.TrimSpace(entry.Key)
		if key != "" {
			if prev, dup := seen[key]; dup {
				errs = append(errs, fmt.Errorf("keys[%d]: duplicate of keys[%d]", i, prev))
			}
			seen[key] = i
		}
		for _, id := range entry.Users {
			if id <= 0 {
				errs = append(errs, fmt.Errorf("keys[%d]: user id %d must be positive", i, id))
			}
		}
		for _, id := range entry.Assets {
			if id <= 0 {
				errs = append(errs, fmt.Errorf("keys[%d]: asset id %d must be positive", i, id))
			}
		}
	}
	return errors.Join(errs...)
}

// Keys is the key state a seed is applied to.
type Keys interface {
	Create(ctx context.Context) (string, error)
	Save(ctx context.Context, key string, users, assets []int64) error
}

// Result reports what happened to one entry.
type Result struct {
	Key       string
	Generated bool
	Users     int
	Assets    int
}

// Apply saves every entry in order. It stops at the first failure and
// returns the results applied so far.
func Apply(ctx context.Context, keys Keys, file *File) ([]Result, error) {
	results := make([]Result, 0, len(file.Keys))
	for i, entry := range file.Keys {
		key := strings.TrimSpace(entry.Key)
		generated := false
		if key == "" {
			created, err := keys.Create(ctx)
			if err != nil {
				return results, fmt.Errorf("keys[%d]: create key: %w", i, err)
			}
			key = created
			generated = true
		}
		if err := keys.Save(ctx, key, entry.Users, entry.Assets); err != nil {
			return results, fmt.Errorf("keys[%d]: %w", i, err)
		}
		results = append(results, Result{Key: key, Generated: generated, Users: len(entry.Users), Assets: len(entry.Assets)})
	}
	return results, nil
}
