package upstream

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// decodeContent undoes every Content-Encoding declared in values. Encodings
// are listed in the order they were applied, so they are removed last first.
func decodeContent(body []byte, values []string) ([]byte, error) {
	encodings := contentEncodings(values)
	for i := len(encodings) - 1; i >= 0; i-- {
		decoded, err := decodeOne(body, encodings[i])
		if err != nil {
			return nil, fmt.Errorf("decode %s content: %w", encodings[i], err)
		}
		body = decoded
	}
	return body, nil
}

func contentEncodings(values []string) []string {
	var encodings []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" || part == "identity" {
				continue
			}
			encodings = append(encodings, part)
		}
	}
	return encodings
}

func decodeOne(body []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return readBounded(reader)
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		if reader, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer reader.Close()
			return readBounded(reader)
		}
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return readBounded(reader)
	case "zstd":
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(maxResponseBytes)))
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return decoder.DecodeAll(body, nil)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
