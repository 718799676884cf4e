package wire

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"jobgraph/internal/services"
)

// FieldSeparator joins encoded fields.
const FieldSeparator = ", "

// DefaultMaxListDepth allows lists of scalars or objects but not lists of lists.
const DefaultMaxListDepth = 1

// Encoder turns values into literal text.
type Encoder struct {
	// MaxListDepth bounds list nesting; zero means DefaultMaxListDepth.
	MaxListDepth int
}

// EncodeFields encodes fields with the default Encoder.
func EncodeFields(fields Fields) (string, error) {
	return Encoder{}.EncodeFields(fields)
}

// Encode encodes a single value with the default Encoder.
func Encode(v Value) (string, error) {
	return Encoder{}.Encode(v)
}

// EncodeFields renders "name: literal" entries joined by FieldSeparator in the
// order given. Fields holding Unset are skipped.
func (e Encoder) EncodeFields(fields Fields) (string, error) {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		if field.Value == Unset {
			continue
		}
		literal, err := e.encode(field.Value, 0)
		if err != nil {
			return "", services.Wrap(services.ErrEncoding, "wire", "encode", fmt.Sprintf("field %s", field.Name), err)
		}
		parts = append(parts, field.Name+": "+literal)
	}
	return strings.Join(parts, FieldSeparator), nil
}

// Encode renders a single literal.
func (e Encoder) Encode(v Value) (string, error) {
	literal, err := e.encode(v, 0)
	if err != nil {
		return "", services.Wrap(services.ErrEncoding, "wire", "encode", "", err)
	}
	return literal, nil
}

func (e Encoder) maxDepth() int {
	if e.MaxListDepth <= 0 {
		return DefaultMaxListDepth
	}
	return e.MaxListDepth
}

func (e Encoder) encode(v Value, depth int) (string, error) {
	switch val := v.(type) {
	case String:
		return Quote(string(val)), nil
	case Number:
		literal, ok := val.literal()
		if !ok {
			return "", fmt.Errorf("number %v has no decimal literal", val.f)
		}
		return literal, nil
	case Bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case Enum:
		if val == "" {
			return "", fmt.Errorf("empty enum token")
		}
		return string(val), nil
	case List:
		if depth+1 > e.maxDepth() {
			return "", fmt.Errorf("list nested deeper than %d level(s)", e.maxDepth())
		}
		items := make([]string, 0, len(val))
		for i, item := range val {
			if item == Unset {
				return "", fmt.Errorf("list item %d is unset", i)
			}
			literal, err := e.encode(item, depth+1)
			if err != nil {
				return "", fmt.Errorf("list item %d: %w", i, err)
			}
			items = append(items, literal)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	case Object:
		parts := make([]string, 0, len(val))
		for _, field := range val {
			if field.Value == Unset {
				continue
			}
			literal, err := e.encode(field.Value, depth)
			if err != nil {
				return "", fmt.Errorf("object field %s: %w", field.Name, err)
			}
			parts = append(parts, field.Name+": "+literal)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	case nil:
		return "", fmt.Errorf("nil value")
	case unset:
		return "", fmt.Errorf("unset value outside a field list")
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// Quote renders s as a double-quoted string literal. Quotes, backslashes and
// control characters are escaped and every non-ASCII rune is written as a
// \uXXXX escape (astral runes as surrogate pairs), so the output is plain ASCII
// and valid both as a JSON and as an operation-language string.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\u%04x`, r)
		case r < utf8.RuneSelf:
			b.WriteRune(r)
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
