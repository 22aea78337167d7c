package upstream

import (
	"testing"
)

func TestNormalizeJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "list concatenates", body: `[{"message":"first"},{"message":"second"}]`, want: "firstsecond"},
		{name: "detailed object errors", body: `{"title":"Bad Request","errors":{"name":["too long"],"id":"missing"}}`, want: `Bad Request{name: ["too long"]; id: missing}`},
		{name: "detailed array errors", body: `{"title":"Invalid","errors":[{"a":1},"b"]}`, want: `Invalid{0: {"a":1}; 1: b}`},
		{name: "detailed without errors", body: `{"title":"Oops"}`, want: "Oops{}"},
		{name: "message verbatim", body: `{"message":"Quota exceeded","code":7}`, want: "Quota exceeded"},
		{name: "empty title falls through", body: `{"title":"","message":"used message"}`, want: "used message"},
		{name: "nested errors", body: `{"errors":[{"message":"inner"}]}`, want: "inner"},
		{name: "null errors is flat", body: `{"errors":null,"code":1}`, want: "errors: null; code: 1"},
		{name: "flat keeps document order", body: `{"zeta":"z","alpha":{"x": 1}}`, want: `zeta: z; alpha: {"x":1}`},
		{name: "empty object", body: `{}`, want: ""},
		{name: "scalar string keeps quotes", body: `"plain"`, want: `"plain"`},
		{name: "scalar number", body: `42`, want: "42"},
		{name: "null", body: `null`, want: ""},
		{name: "numeric message is rendered", body: `{"message":5}`, want: "5"},
		{name: "numeric title is detailed", body: `{"title":5,"errors":{"a":"b"}}`, want: "5{a: b}"},
		{name: "zero title falls through", body: `{"title":0,"message":"m"}`, want: "m"},
		{name: "false errors ignored by title", body: `{"title":"T","errors":false}`, want: "T{}"},
		{name: "empty string errors is flat", body: `{"errors":""}`, want: "errors: "},
		{name: "zero errors is flat", body: `{"errors":0,"code":2}`, want: "errors: 0; code: 2"},
		{name: "empty message is flat", body: `{"message":""}`, want: "message: "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeJSON([]byte(tc.body))
			if !ok {
				t.Fatalf("expected %s to parse", tc.body)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizeJSONRejectsNonJSON(t *testing.T) {
	for _, body := range []string{"", "   ", "<html>bad gateway</html>", `{"a":`} {
		if got, ok := NormalizeJSON([]byte(body)); ok {
			t.Fatalf("expected %q to be rejected, got %q", body, got)
		}
	}
}

func TestParseErrorShapeVariants(t *testing.T) {
	shape, err := ParseErrorShape([]byte(`{"errors":{"title":"T","errors":{"k":"v"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	nested, ok := shape.(NestedShape)
	if !ok {
		t.Fatalf("expected NestedShape, got %T", shape)
	}
	detailed, ok := nested.Inner.(DetailedShape)
	if !ok {
		t.Fatalf("expected DetailedShape inside, got %T", nested.Inner)
	}
	if detailed.Title != "T" || len(detailed.Details) != 1 || detailed.Details[0].Name != "k" {
		t.Fatalf("unexpected detailed shape: %+v", detailed)
	}
	if got := Normalize(shape); got != "T{k: v}" {
		t.Fatalf("expected T{k: v}, got %q", got)
	}
	if got := Normalize(nil); got != "" {
		t.Fatalf("expected empty string for nil shape, got %q", got)
	}
}
