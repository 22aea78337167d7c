// Package updatebody encodes the PATCH /assets request body: a little-endian
// float64 asset id followed by the model bytes.
package updatebody

import (
	"encoding/binary"
	"math"
)

// PrefixBytes is the size of the asset id that leads every update body.
const PrefixBytes = 8

// maxExactFloatInt is the largest integer a float64 represents exactly.
const maxExactFloatInt = 1 << 53

// Split separates the asset id prefix from the model bytes. ok is false when
// the body is shorter than the prefix or the prefix is not a positive
// integral value.
func Split(body []byte) (assetID int64, content []byte, ok bool) {
	if len(body) < PrefixBytes {
		return 0, nil, false
	}
	raw := math.Float64frombits(binary.LittleEndian.Uint64(body[:PrefixBytes]))
	content = body[PrefixBytes:]
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw != math.Trunc(raw) {
		return 0, content, false
	}
	if raw <= 0 || raw > maxExactFloatInt {
		return 0, content, false
	}
	return int64(raw), content, true
}

// Encode builds an update body for assetID.
func Encode(assetID int64, content []byte) []byte {
	out := make([]byte, PrefixBytes, PrefixBytes+len(content))
	binary.LittleEndian.PutUint64(out, math.Float64bits(float64(assetID)))
	return append(out, content...)
}
