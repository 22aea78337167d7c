package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

var errNotJSON = errors.New("upstream: error body is not JSON")

// ErrorShape is one of the error body layouts the asset service is known to
// return. The concrete types are ListShape, DetailedShape, MessageShape,
// NestedShape, FlatShape and ScalarShape.
type ErrorShape interface {
	isErrorShape()
}

// ListShape is a top-level JSON array of errors.
type ListShape []ErrorShape

// DetailedShape is an object with a truthy "title"; Details holds the fields
// of its "errors" member when that member is truthy.
type DetailedShape struct {
	Title   string
	Details []Field
}

// MessageShape is an object with a truthy "message".
type MessageShape struct {
	Message string
}

// NestedShape is an object whose only meaningful member is a truthy "errors".
type NestedShape struct {
	Inner ErrorShape
}

// FlatShape is any other object, rendered field by field.
type FlatShape struct {
	Fields []Field
}

// ScalarShape is a top-level string, number, boolean or null.
type ScalarShape struct {
	Text string
}

// Field is an object member in document order.
type Field struct {
	Name  string
	Value json.RawMessage
}

func (ListShape) isErrorShape()     {}
func (DetailedShape) isErrorShape() {}
func (MessageShape) isErrorShape()  {}
func (NestedShape) isErrorShape()   {}
func (FlatShape) isErrorShape()     {}
func (ScalarShape) isErrorShape()   {}

// ParseErrorShape decodes an error body once into its shape.
func ParseErrorShape(data []byte) (ErrorShape, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, errNotJSON
	}
	return parseShape(trimmed)
}

func parseShape(raw json.RawMessage) (ErrorShape, error) {
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		list := make(ListShape, 0, len(items))
		for _, item := range items {
			child, err := parseShape(item)
			if err != nil {
				return nil, err
			}
			list = append(list, child)
		}
		return list, nil
	case '{':
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		if title := member(fields, "title"); isTruthy(title) {
			var details []Field
			if inner := member(fields, "errors"); isTruthy(inner) {
				details, err = detailFields(inner)
				if err != nil {
					return nil, err
				}
			}
			return DetailedShape{Title: renderValue(title), Details: details}, nil
		}
		if message := member(fields, "message"); isTruthy(message) {
			return MessageShape{Message: renderValue(message)}, nil
		}
		if inner := member(fields, "errors"); isTruthy(inner) {
			child, err := parseShape(inner)
			if err != nil {
				return nil, err
			}
			return NestedShape{Inner: child}, nil
		}
		return FlatShape{Fields: fields}, nil
	case 'n':
		return ScalarShape{}, nil
	default:
		return ScalarShape{Text: string(raw)}, nil
	}
}

// Normalize renders a shape as a single human-readable string.
func Normalize(shape ErrorShape) string {
	switch s := shape.(type) {
	case ListShape:
		var b strings.Builder
		for _, child := range s {
			b.WriteString(Normalize(child))
		}
		return b.String()
	case DetailedShape:
		return s.Title + "{" + joinFields(s.Details) + "}"
	case MessageShape:
		return s.Message
	case NestedShape:
		return Normalize(s.Inner)
	case FlatShape:
		return joinFields(s.Fields)
	case ScalarShape:
		return s.Text
	default:
		return ""
	}
}

// NormalizeJSON parses and normalizes data. ok is false only when data is not
// JSON.
func NormalizeJSON(data []byte) (string, bool) {
	shape, err := ParseErrorShape(data)
	if err != nil {
		return "", false
	}
	return Normalize(shape), true
}

func joinFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field.Name+": "+renderValue(field.Value))
	}
	return strings.Join(parts, "; ")
}

func renderValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

// decodeFields returns the members of a JSON object in document order.
func decodeFields(raw json.RawMessage) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, errNotJSON
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return fields, nil
}

// detailFields flattens the "errors" member of a detailed error. Arrays are
// keyed by index.
func detailFields(raw json.RawMessage) ([]Field, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '{':
		return decodeFields(raw)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		fields := make([]Field, 0, len(items))
		for i, item := range items {
			fields = append(fields, Field{Name: strconv.Itoa(i), Value: item})
		}
		return fields, nil
	default:
		return nil, nil
	}
}

// member returns the last occurrence of name, matching how JSON objects with
// duplicate keys are usually read.
func member(fields []Field, name string) json.RawMessage {
	var value json.RawMessage
	for _, field := range fields {
		if field.Name == name {
			value = field.Value
		}
	}
	return value
}

// isTruthy reports whether a member selects its branch. Absent members, null,
// false, zero and the empty string do not; objects and arrays always do.
func isTruthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '{', '[':
		return true
	case '"':
		var text string
		return json.Unmarshal(raw, &text) == nil && text != ""
	case 'n', 'f':
		return false
	case 't':
		return true
	default:
		n, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && n != 0
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
