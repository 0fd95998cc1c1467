package query

import (
	"reflect"
	"testing"
)

func TestParseSearch(t *testing.T) {
	tests := []struct {
		in   string
		want []SearchTerm
	}{
		{"", []SearchTerm{}},
		{"timeout", []SearchTerm{{Field: FieldAny, Value: "timeout"}}},
		{"message:failed", []SearchTerm{{Field: FieldMessage, Value: "failed"}}},
		{"-message:debug", []SearchTerm{{Field: FieldMessage, Value: "debug", Exclude: true}}},
		{"-noise", []SearchTerm{{Field: FieldAny, Value: "noise", Exclude: true}}},
		{`"connection reset"`, []SearchTerm{{Field: FieldAny, Value: "connection reset"}}},
		{`message:"disk full" level:error`, []SearchTerm{
			{Field: FieldMessage, Value: "disk full"},
			{Field: FieldLevel, Value: "error"},
		}},
		{"body:x", []SearchTerm{{Field: FieldAny, Value: "body:x"}}},
		{"ip_address:10.0.0.1 METHOD:post", []SearchTerm{
			{Field: FieldIP, Value: "10.0.0.1"},
			{Field: FieldMethod, Value: "post"},
		}},
		{"url:http://x.io/a", []SearchTerm{{Field: FieldURL, Value: "http://x.io/a"}}},
		{"message: ", []SearchTerm{}},
		{`-"bad thing" ok`, []SearchTerm{
			{Field: FieldAny, Value: "bad thing", Exclude: true},
			{Field: FieldAny, Value: "ok"},
		}},
		{`"unterminated quote`, []SearchTerm{{Field: FieldAny, Value: "unterminated quote"}}},
	}
	for _, tt := range tests {
		if got := ParseSearch(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseSearch(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
