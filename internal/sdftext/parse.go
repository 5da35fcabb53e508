package sdftext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/sen"
)

// Parse decodes stage text into a Document. Errors carry the line
// number of the offending construct. The "#usda 1.0" header line is
// treated like any other comment, so headerless fragments parse too.
func Parse(src string) (*Document, error) {
	p := &parser{src: src, line: 1}
	doc := &Document{}
	for {
		p.skipSpace()
		if p.eof() {
			return doc, nil
		}
		prim, err := p.parsePrim()
		if err != nil {
			return nil, err
		}
		doc.Prims = append(doc.Prims, prim)
	}
}

// ParseValue decodes a single value literal the way attribute values in
// stage text are decoded: tuples in parentheses become slices, quoted
// text becomes a string, bare words become strings, numbers and
// booleans become themselves. Used by surfaces that accept values as
// text.
func ParseValue(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty value")
	}
	if strings.HasPrefix(text, "@") && strings.HasSuffix(text, "@") && len(text) >= 2 {
		return strings.Trim(text, "@"), nil
	}
	return parseLiteral(text)
}

type parser struct {
	src  string
	pos  int
	line int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

// skipSpace advances over whitespace and #-comments, counting lines.
func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == '\n':
			p.line++
			p.pos++
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errf("expected %q, found %q", string(c), string(p.peek()))
	}
	p.pos++
	return nil
}

// skipComma consumes an optional list separator.
func (p *parser) skipComma() {
	p.skipSpace()
	if p.peek() == ',' {
		p.pos++
	}
}

func (p *parser) scanIdent() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			c >= '0' && c <= '9' && p.pos > start {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// scanAttrName accepts namespaced attribute names like "primvars:st".
func (p *parser) scanAttrName() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			p.pos > start && (c >= '0' && c <= '9' || c == ':') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) scanQuoted() (string, error) {
	p.skipSpace()
	if p.peek() != '"' {
		return "", p.errf("expected quoted string, found %q", string(p.peek()))
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.eof() {
				return "", p.errf("unterminated string")
			}
			switch esc := p.src[p.pos]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(esc)
			}
			p.pos++
		case '\n':
			return "", p.errf("unterminated string")
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string")
}

func (p *parser) scanAsset() (string, error) {
	if p.peek() != '@' {
		return "", p.errf("expected asset path")
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '@':
			s := p.src[start:p.pos]
			p.pos++
			return s, nil
		case '\n':
			return "", p.errf("unterminated asset path")
		}
		p.pos++
	}
	return "", p.errf("unterminated asset path")
}

func (p *parser) scanBool() (bool, error) {
	p.skipSpace()
	switch word := p.scanIdent(); word {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, p.errf("expected true or false, got %q", word)
	}
}

func (p *parser) parsePrim() (*Prim, error) {
	p.skipSpace()
	start := p.pos
	spec := p.scanIdent()
	switch spec {
	case "def", "over", "class":
	default:
		return nil, p.errf("expected def, over or class, got %q", spec)
	}
	prim := &Prim{Specifier: spec}
	p.skipSpace()
	if p.peek() != '"' {
		prim.TypeName = p.scanIdent()
		if prim.TypeName == "" {
			return nil, p.errf("expected schema type or prim name after %q", spec)
		}
	}
	name, err := p.scanQuoted()
	if err != nil {
		return nil, err
	}
	if !isIdentifier(name) {
		return nil, p.errf("invalid prim name %q", name)
	}
	prim.Name = name
	p.skipSpace()
	if p.peek() == '(' {
		if err := p.parsePrimMeta(prim); err != nil {
			return nil, err
		}
	}
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	if err := p.parseBody(prim); err != nil {
		return nil, err
	}
	prim.Origin = Origin{Start: start, End: p.pos}
	return prim, nil
}

func (p *parser) parsePrimMeta(prim *Prim) error {
	p.pos++ // consume '('
	for {
		p.skipSpace()
		if p.eof() {
			return p.errf("unterminated metadata list for %q", prim.Name)
		}
		if p.peek() == ')' {
			p.pos++
			return nil
		}
		key := p.scanIdent()
		if key == "" {
			return p.errf("expected metadata key, found %q", string(p.peek()))
		}
		if err := p.expect('='); err != nil {
			return err
		}
		p.skipSpace()
		switch key {
		case "kind":
			s, err := p.scanQuoted()
			if err != nil {
				return err
			}
			prim.Kind = s
		case "active":
			b, err := p.scanBool()
			if err != nil {
				return err
			}
			prim.Active = &b
		case "instanceable":
			b, err := p.scanBool()
			if err != nil {
				return err
			}
			prim.Instanceable = b
		case "payload":
			s, err := p.scanAsset()
			if err != nil {
				return err
			}
			prim.Payload = s
		case "variants":
			sel, err := p.parseVariantSelections()
			if err != nil {
				return err
			}
			prim.Variants = sel
		default:
			v, err := p.scanValue()
			if err != nil {
				return err
			}
			if prim.Metadata == nil {
				prim.Metadata = map[string]any{}
			}
			prim.Metadata[key] = v
		}
		p.skipComma()
	}
}

func (p *parser) parseVariantSelections() (map[string]string, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errf("unterminated variants block")
		}
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		key := p.scanIdent()
		p.skipSpace()
		// Tolerate the explicit "string" type token real usda writes.
		if key == "string" && p.peek() != '=' {
			key = p.scanIdent()
			p.skipSpace()
		}
		if key == "" {
			return nil, p.errf("expected variant set name")
		}
		if err := p.expect('='); err != nil {
			return nil, err
		}
		val, err := p.scanQuoted()
		if err != nil {
			return nil, err
		}
		out[key] = val
		p.skipComma()
	}
}

func (p *parser) parseBody(prim *Prim) error {
	for {
		p.skipSpace()
		if p.eof() {
			return p.errf("unterminated body for prim %q", prim.Name)
		}
		if p.peek() == '}' {
			p.pos++
			return nil
		}
		save, saveLine := p.pos, p.line
		switch word := p.scanIdent(); word {
		case "def", "over", "class":
			p.pos, p.line = save, saveLine
			child, err := p.parsePrim()
			if err != nil {
				return err
			}
			prim.Children = append(prim.Children, child)
		case "variantSet":
			vs, err := p.parseVariantSet()
			if err != nil {
				return err
			}
			prim.VariantSets = append(prim.VariantSets, vs)
		case "":
			return p.errf("unexpected character %q in body of %q", string(p.peek()), prim.Name)
		default:
			p.pos, p.line = save, saveLine
			if err := p.parseAttr(prim); err != nil {
				return err
			}
		}
	}
}

func (p *parser) parseVariantSet() (*VariantSet, error) {
	name, err := p.scanQuoted()
	if err != nil {
		return nil, err
	}
	if err := p.expect('='); err != nil {
		return nil, err
	}
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	vs := &VariantSet{Name: name}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errf("unterminated variantSet %q", name)
		}
		if p.peek() == '}' {
			p.pos++
			return vs, nil
		}
		variant, err := p.scanQuoted()
		if err != nil {
			return nil, err
		}
		vs.Variants = append(vs.Variants, variant)
		p.skipComma()
	}
}

func (p *parser) parseAttr(prim *Prim) error {
	custom, uniform := false, false
	word := p.scanIdent()
	for word == "custom" || word == "uniform" {
		if word == "custom" {
			custom = true
		} else {
			uniform = true
		}
		p.skipSpace()
		word = p.scanIdent()
	}
	typeName := word
	if typeName == "" {
		return p.errf("expected attribute type in body of %q", prim.Name)
	}
	if strings.HasPrefix(p.src[p.pos:], "[]") {
		typeName += "[]"
		p.pos += 2
	}
	p.skipSpace()
	name := p.scanAttrName()
	if name == "" {
		return p.errf("expected attribute name after type %q", typeName)
	}
	samples := false
	if p.peek() == '.' {
		p.pos++
		if suffix := p.scanIdent(); suffix != "timeSamples" {
			return p.errf("unsupported attribute suffix %q on %q", suffix, name)
		}
		samples = true
	}

	attr := prim.Attr(name)
	if attr == nil {
		attr = &Attr{Name: name, TypeName: typeName, Custom: custom, Uniform: uniform}
		prim.Attrs = append(prim.Attrs, attr)
	}

	if samples {
		if err := p.expect('='); err != nil {
			return err
		}
		ts, err := p.parseSamples(name)
		if err != nil {
			return err
		}
		attr.Samples = ts
		return nil
	}

	p.skipSpace()
	if p.peek() == '=' {
		p.pos++
		v, err := p.scanValue()
		if err != nil {
			return err
		}
		attr.Value = v
		attr.HasValue = true
	}
	p.skipSpace()
	if p.peek() == '(' {
		meta, err := p.parseAttrMeta(name)
		if err != nil {
			return err
		}
		attr.Meta = meta
	}
	return nil
}

func (p *parser) parseSamples(attrName string) ([]Sample, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	var out []Sample
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errf("unterminated timeSamples for %q", attrName)
		}
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		tok := p.scanToken()
		t, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, p.errf("bad time code %q in %q", tok, attrName)
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		v, err := p.scanValue()
		if err != nil {
			return nil, err
		}
		out = append(out, Sample{Time: t, Value: v})
		p.skipComma()
	}
}

func (p *parser) parseAttrMeta(attrName string) (map[string]any, error) {
	p.pos++ // consume '('
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errf("unterminated attribute metadata for %q", attrName)
		}
		if p.peek() == ')' {
			p.pos++
			return out, nil
		}
		key := p.scanIdent()
		if key == "" {
			return nil, p.errf("expected metadata key on %q", attrName)
		}
		if err := p.expect('='); err != nil {
			return nil, err
		}
		v, err := p.scanValue()
		if err != nil {
			return nil, err
		}
		out[key] = v
		p.skipComma()
	}
}

// scanValue reads one value literal: quoted string, asset path,
// bracketed array, parenthesized tuple, or a bare scalar token.
func (p *parser) scanValue() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errf("expected value")
	}
	switch c := p.peek(); c {
	case '"':
		return p.scanQuoted()
	case '@':
		return p.scanAsset()
	case '[':
		raw, err := p.scanBalanced('[', ']')
		if err != nil {
			return nil, err
		}
		v, err := parseLiteral(raw)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		return v, nil
	case '(':
		raw, err := p.scanBalanced('(', ')')
		if err != nil {
			return nil, err
		}
		v, err := parseLiteral(raw)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		return v, nil
	case '{':
		raw, err := p.scanBalanced('{', '}')
		if err != nil {
			return nil, err
		}
		v, err := parseLiteral(raw)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		return v, nil
	default:
		tok := p.scanToken()
		if tok == "" {
			return nil, p.errf("expected value, found %q", string(c))
		}
		v, err := parseLiteral(tok)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		return v, nil
	}
}

// scanToken reads a bare scalar up to a delimiter.
func (p *parser) scanToken() string {
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n', ',', ':', ')', ']', '}', '(':
			return p.src[start:p.pos]
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

// scanBalanced captures a bracketed group including its delimiters,
// honoring nesting and quoted strings.
func (p *parser) scanBalanced(open, close byte) (string, error) {
	start := p.pos
	depth := 0
	inString := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if inString {
			switch c {
			case '\\':
				p.pos++
			case '"':
				inString = false
			case '\n':
				return "", p.errf("unterminated string in value")
			}
			p.pos++
			continue
		}
		switch c {
		case '"':
			inString = true
		case '\n':
			p.line++
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				p.pos++
				return p.src[start:p.pos], nil
			}
		}
		p.pos++
	}
	return "", p.errf("unterminated %q value", string(open))
}

// parseLiteral decodes a literal with SEN after normalizing tuple
// parentheses to brackets.
func parseLiteral(raw string) (any, error) {
	v, err := sen.Parse([]byte(normalizeTuples(raw)))
	if err != nil {
		return nil, fmt.Errorf("bad value literal %q: %v", raw, err)
	}
	return v, nil
}

// normalizeTuples rewrites ( and ) to [ and ] outside quoted strings.
func normalizeTuples(s string) string {
	b := []byte(s)
	inString := false
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '(':
			if !inString {
				b[i] = '['
			}
		case ')':
			if !inString {
				b[i] = ']'
			}
		}
	}
	return string(b)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
