package wire_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"jobgraph/internal/services"
	"jobgraph/internal/wire"
)

func TestEncodeFieldsLiterals(t *testing.T) {
	tests := []struct {
		name   string
		fields wire.Fields
		want   string
	}{
		{
			name:   "enum token is emitted verbatim",
			fields: wire.Fields{}.With("inLanguage", wire.Enum("en")),
			want:   "inLanguage: en",
		},
		{
			name:   "enum list",
			fields: wire.Fields{}.With("items", wire.Enums("one", "two")),
			want:   "items: [one, two]",
		},
		{
			name:   "string list",
			fields: wire.Fields{}.With("items", wire.Strings("val1", "val2")),
			want:   `items: ["val1", "val2"]`,
		},
		{
			name:   "boolean is lowercase",
			fields: wire.Fields{}.With("flag", wire.Bool(true)).With("other", wire.Bool(false)),
			want:   "flag: true, other: false",
		},
		{
			name:   "numbers are unquoted decimals",
			fields: wire.Fields{}.With("count", wire.Int(-3)).With("ratio", wire.Float(0.25)).With("big", wire.Float(1e21)),
			want:   "count: -3, ratio: 0.25, big: 1000000000000000000000",
		},
		{
			name: "key order is preserved",
			fields: wire.Fields{}.
				With("zeta", wire.String("z")).
				With("alpha", wire.String("a")).
				With("mid", wire.Int(1)),
			want: `zeta: "z", alpha: "a", mid: 1`,
		},
		{
			name: "unset fields are skipped but zero values are kept",
			fields: wire.Fields{}.
				With("identifier", wire.String("abc")).
				With("name", wire.Unset).
				With("valueMinLength", wire.Int(0)).
				With("description", wire.String("")).
				With("valueRequired", wire.Bool(false)),
			want: `identifier: "abc", valueMinLength: 0, description: "", valueRequired: false`,
		},
		{
			name: "objects inside lists",
			fields: wire.Fields{}.With("propertyObject", wire.List{
				wire.Object{{Name: "nodeIdentifier", Value: wire.String("n1")}, {Name: "nodeType", Value: wire.Enum("DigitalDocument")}},
			}),
			want: `propertyObject: [{nodeIdentifier: "n1", nodeType: DigitalDocument}]`,
		},
		{
			name:   "empty list",
			fields: wire.Fields{}.With("items", wire.List{}),
			want:   "items: []",
		},
		{
			name:   "empty fields",
			fields: nil,
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wire.EncodeFields(tt.fields)
			if err != nil {
				t.Fatalf("EncodeFields returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("EncodeFields = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuoteEscapesToValidLiteral(t *testing.T) {
	inputs := []string{
		`say "hi"`,
		`back\slash`,
		"café \"crème\"",
		"line\nbreak\ttab",
		"emoji \U0001F3B5 note",
		"ctrl \x01 char",
	}
	for _, input := range inputs {
		literal := wire.Quote(input)
		for _, r := range literal {
			if r > 0x7e || r < 0x20 {
				t.Fatalf("literal %q contains raw rune %U", literal, r)
			}
		}
		var decoded string
		if err := json.Unmarshal([]byte(literal), &decoded); err != nil {
			t.Fatalf("literal %q is not a valid string literal: %v", literal, err)
		}
		if decoded != input {
			t.Fatalf("round trip mismatch: got %q want %q", decoded, input)
		}
	}
}

func TestQuoteSpecificEscapes(t *testing.T) {
	got := wire.Quote("a\"é")
	if got != `"a\"\u00e9"` {
		t.Fatalf("Quote = %s", got)
	}
	if got := wire.Quote("\U0001F3B5"); got != `"\ud83c\udfb5"` {
		t.Fatalf("Quote astral = %s", got)
	}
}

func TestEncodeRejectsNestedLists(t *testing.T) {
	fields := wire.Fields{}.With("matrix", wire.List{wire.Enums("a"), wire.Enums("b")})
	out, err := wire.EncodeFields(fields)
	if err == nil {
		t.Fatalf("expected error, got %q", out)
	}
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
	if !strings.Contains(err.Error(), "matrix") {
		t.Fatalf("expected field name in error, got %v", err)
	}
}

func TestEncoderMaxListDepthAllowsDeeperNesting(t *testing.T) {
	enc := wire.Encoder{MaxListDepth: 2}
	got, err := enc.Encode(wire.List{wire.Enums("a", "b"), wire.List{wire.Int(1)}})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if got != "[[a, b], [1]]" {
		t.Fatalf("Encode = %q", got)
	}
}

func TestEncodeRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value wire.Value
	}{
		{"nan", wire.Float(math.NaN())},
		{"infinity", wire.Float(math.Inf(1))},
		{"empty enum", wire.Enum("")},
		{"nil", nil},
		{"unset list item", wire.List{wire.Unset}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := wire.Encode(tt.value); !errors.Is(err, services.ErrEncoding) {
				t.Fatalf("expected encoding error, got %v", err)
			}
		})
	}
}

func TestOptionalHelpers(t *testing.T) {
	zero := 0
	empty := ""
	no := false
	fields := wire.Fields{}.
		With("a", wire.OptInt(nil)).
		With("b", wire.OptInt(&zero)).
		With("c", wire.OptString(nil)).
		With("d", wire.OptString(&empty)).
		With("e", wire.OptBool(&no)).
		With("f", wire.NonEmpty(""))
	if fields.Set() != 3 {
		t.Fatalf("Set() = %d, want 3", fields.Set())
	}
	got, err := wire.EncodeFields(fields)
	if err != nil {
		t.Fatalf("EncodeFields returned error: %v", err)
	}
	if got != `b: 0, d: "", e: false` {
		t.Fatalf("EncodeFields = %q", got)
	}
	if v, ok := fields.Get("b"); !ok || v != wire.Value(wire.Int(0)) {
		t.Fatalf("Get(b) = %v %v", v, ok)
	}
}
