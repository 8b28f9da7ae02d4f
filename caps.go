package mediaparser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fraction is a rational caps value such as a frame rate.
type Fraction struct {
	Num int
	Den int
}

func (f Fraction) String() string {
	return strconv.Itoa(f.Num) + "/" + strconv.Itoa(f.Den)
}

// Caps is a value copy of one native capability structure: a media type name
// and its ordered, typed fields. Field values are int, uint64, float64, bool,
// string or Fraction. Values the parser cannot fix (lists, ranges) are kept
// as their raw string form.
type Caps struct {
	Name   string
	fields []capsField
}

type capsField struct {
	name  string
	value any
}

// NewCaps creates caps with the given media type name and no fields.
func NewCaps(name string) Caps {
	return Caps{Name: name}
}

// IsEmpty reports whether c describes nothing.
func (c Caps) IsEmpty() bool { return c.Name == "" }

// With returns a copy of c with field name set to value.
func (c Caps) With(name string, value any) Caps {
	out := Caps{Name: c.Name, fields: make([]capsField, 0, len(c.fields)+1)}
	replaced := false
	for _, f := range c.fields {
		if f.name == name {
			f.value = value
			replaced = true
		}
		out.fields = append(out.fields, f)
	}
	if !replaced {
		out.fields = append(out.fields, capsField{name: name, value: value})
	}
	return out
}

// Field returns the raw value of a field.
func (c Caps) Field(name string) (any, bool) {
	for _, f := range c.fields {
		if f.name == name {
			return f.value, true
		}
	}
	return nil, false
}

// Fields returns the field names in order.
func (c Caps) Fields() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.name
	}
	return names
}

// Int returns an integer field.
func (c Caps) Int(name string) (int, bool) {
	v, ok := c.Field(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

// Str returns a string field.
func (c Caps) Str(name string) (string, bool) {
	v, ok := c.Field(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns a boolean field.
func (c Caps) Bool(name string) (bool, bool) {
	v, ok := c.Field(name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Fraction returns a fraction field.
func (c Caps) Fraction(name string) (Fraction, bool) {
	v, ok := c.Field(name)
	if !ok {
		return Fraction{}, false
	}
	f, ok := v.(Fraction)
	return f, ok
}

// String serializes c in the engine's caps string syntax.
func (c Caps) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, f := range c.fields {
		b.WriteString(", ")
		b.WriteString(f.name)
		b.WriteByte('=')
		switch v := f.value.(type) {
		case int:
			b.WriteString("(int)")
			b.WriteString(strconv.Itoa(v))
		case uint64:
			b.WriteString("(bitmask)0x")
			b.WriteString(strconv.FormatUint(v, 16))
		case float64:
			b.WriteString("(double)")
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		case bool:
			b.WriteString("(boolean)")
			b.WriteString(strconv.FormatBool(v))
		case Fraction:
			b.WriteString("(fraction)")
			b.WriteString(v.String())
		case string:
			b.WriteString("(string)")
			b.WriteString(quoteCapsString(v))
		default:
			b.WriteString(fmt.Sprint(v))
		}
	}
	return b.String()
}

func quoteCapsString(s string) string {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			r == '_' || r == '-' || r == '.' || r == '+' || r == '/' || r == ':') {
			return strconv.Quote(s)
		}
	}
	if s == "" {
		return `""`
	}
	return s
}

var errCapsSyntax = errors.New("caps syntax error")

// ParseCaps parses the first structure of a serialized caps string, e.g.
// "video/x-raw, format=(string)I420, width=(int)320, framerate=(fraction)30/1".
func ParseCaps(s string) (Caps, error) {
	p := capsParser{s: s}
	p.skipSpace()
	name := p.readUntil(",;")
	name = strings.TrimSpace(name)
	if name == "" {
		return Caps{}, fmt.Errorf("%w: missing structure name in %q", errCapsSyntax, s)
	}
	c := Caps{Name: name}

	for p.pos < len(p.s) && p.s[p.pos] == ',' {
		p.pos++
		p.skipSpace()
		key := strings.TrimSpace(p.readUntil("=,;"))
		if p.pos >= len(p.s) || p.s[p.pos] != '=' {
			return Caps{}, fmt.Errorf("%w: field %q has no value", errCapsSyntax, key)
		}
		p.pos++
		p.skipSpace()

		typ := ""
		if p.pos < len(p.s) && p.s[p.pos] == '(' {
			end := strings.IndexByte(p.s[p.pos:], ')')
			if end < 0 {
				return Caps{}, fmt.Errorf("%w: unterminated type for %q", errCapsSyntax, key)
			}
			typ = p.s[p.pos+1 : p.pos+end]
			p.pos += end + 1
		}

		raw, quoted, err := p.readValue()
		if err != nil {
			return Caps{}, fmt.Errorf("field %q: %w", key, err)
		}
		c.fields = append(c.fields, capsField{name: key, value: convertCapsValue(typ, raw, quoted)})
		p.skipSpace()
	}
	return c, nil
}

type capsParser struct {
	s   string
	pos int
}

func (p *capsParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t' || p.s[p.pos] == '\n') {
		p.pos++
	}
}

func (p *capsParser) readUntil(stops string) string {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(stops, rune(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *capsParser) readValue() (string, bool, error) {
	if p.pos >= len(p.s) {
		return "", false, errCapsSyntax
	}
	switch p.s[p.pos] {
	case '"':
		start := p.pos
		p.pos++
		for p.pos < len(p.s) && p.s[p.pos] != '"' {
			if p.s[p.pos] == '\\' {
				p.pos++
			}
			p.pos++
		}
		if p.pos >= len(p.s) {
			return "", false, fmt.Errorf("%w: unterminated string", errCapsSyntax)
		}
		p.pos++
		v, err := strconv.Unquote(p.s[start:p.pos])
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", errCapsSyntax, err)
		}
		return v, true, nil
	case '{', '<', '[':
		start := p.pos
		depth := 0
		for p.pos < len(p.s) {
			switch p.s[p.pos] {
			case '{', '<', '[':
				depth++
			case '}', '>', ']':
				depth--
			}
			p.pos++
			if depth == 0 {
				return p.s[start:p.pos], true, nil
			}
		}
		return "", false, fmt.Errorf("%w: unbalanced %q", errCapsSyntax, p.s[start])
	default:
		return strings.TrimSpace(p.readUntil(",;")), false, nil
	}
}

func convertCapsValue(typ, raw string, quoted bool) any {
	if quoted {
		return raw
	}
	switch typ {
	case "int", "i", "gint":
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case "uint", "u", "guint", "int64", "uint64", "gint64", "guint64", "bitmask", "flagset":
		if n, err := strconv.ParseUint(raw, 0, 64); err == nil {
			if typ == "bitmask" || typ == "flagset" {
				return n
			}
			return int(n)
		}
	case "boolean", "bool", "b":
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	case "fraction", "GstFraction":
		if f, ok := parseFraction(raw); ok {
			return f
		}
	case "double", "float", "d", "f":
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case "string", "s", "str", "":
		if typ == "" {
			return inferCapsValue(raw)
		}
		return raw
	}
	return raw
}

func inferCapsValue(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, ok := parseFraction(raw); ok {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func parseFraction(raw string) (Fraction, bool) {
	num, den, ok := strings.Cut(raw, "/")
	if !ok {
		return Fraction{}, false
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(num))
	d, err2 := strconv.Atoi(strings.TrimSpace(den))
	if err1 != nil || err2 != nil {
		return Fraction{}, false
	}
	return Fraction{Num: n, Den: d}, true
}
