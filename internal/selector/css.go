// internal/selector/css.go
package selector

import (
	"fmt"
	"strings"
)

// SimpleSelector is a compound CSS selector without combinators,
// e.g. input#username.required[type="text"].
type SimpleSelector struct {
	TagName    string
	ID         string
	Classes    []string
	Attributes []AttributeSelector
}

// AttributeSelector is a CSS attribute selector like [href] or [type="text"].
type AttributeSelector struct {
	Name     string
	Operator string // "", "=", "~=", "|=", "^=", "$=", "*="
	Value    string
}

// IsValid checks if the selector has at least one component.
func (s SimpleSelector) IsValid() bool {
	return s.TagName != "" || s.ID != "" || len(s.Classes) > 0 || len(s.Attributes) > 0
}

// Declaration is one property: value pair from an inline style attribute.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// CSSToXPath translates a compound CSS selector made only of a tag, #id,
// .class and [attr=value] parts into an equivalent XPath. Any selector using
// combinators, pseudo-classes, selector lists or other attribute operators is
// returned unchanged so the driver can evaluate it as CSS.
func CSSToXPath(css string) string {
	trimmed := strings.TrimSpace(css)
	if trimmed == "" || strings.ContainsAny(trimmed, ">+~:,") {
		return css
	}

	p := NewParser(trimmed)
	simple, err := p.ParseSimpleSelector()
	if err != nil || !p.eof() {
		// Trailing input means a descendant combinator or something we do not
		// translate.
		return css
	}
	for _, a := range simple.Attributes {
		if a.Operator != "=" {
			return css
		}
	}

	var preds And
	if simple.ID != "" {
		preds = append(preds, AttrEquals{Name: "id", Value: simple.ID})
	}
	for _, c := range simple.Classes {
		preds = append(preds, ClassToken{Token: c})
	}
	for _, a := range simple.Attributes {
		preds = append(preds, AttrEquals{Name: a.Name, Value: a.Value})
	}

	tag := simple.TagName
	if tag == "" {
		tag = "*"
	}
	if len(preds) == 0 {
		return Find(tag).String()
	}
	return Find(tag, preds).String()
}

// ParseDeclarations parses the body of an inline style attribute
// ("display: none; color: red !important").
func ParseDeclarations(style string) []Declaration {
	p := NewParser(style)
	var out []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		prop, val, important := p.parseDeclaration()
		if prop != "" && val != "" {
			out = append(out, Declaration{
				Property:  strings.ToLower(prop),
				Value:     strings.ToLower(val),
				Important: important,
			})
		}
	}
	return out
}

// Parser is a small hand-written CSS tokenizer covering compound selectors and
// declaration lists.
type Parser struct {
	input string
	pos   int
}

func NewParser(input string) *Parser {
	return &Parser{input: input, pos: 0}
}

// ParseSimpleSelector parses a single compound selector (e.g., div#id.class1.class2).
func (p *Parser) ParseSimpleSelector() (SimpleSelector, error) {
	selector := SimpleSelector{}
	p.consumeWhitespace()

	// Universal or Tag Name
	if !p.eof() {
		ch := p.currentChar()
		if ch == '*' {
			p.consumeChar()
			selector.TagName = "*"
		} else if isValidIdentifierStart(ch) {
			selector.TagName = strings.ToLower(p.parseIdentifier())
		}
	}

	// IDs, Classes, and Attributes
	for !p.eof() {
		switch p.currentChar() {
		case '#':
			p.consumeChar()
			selector.ID = p.parseIdentifier()
		case '.':
			p.consumeChar()
			selector.Classes = append(selector.Classes, p.parseIdentifier())
		case '[':
			p.consumeChar() // consume '['
			attr, err := p.parseAttributeSelector()
			if err != nil {
				return selector, err
			}
			selector.Attributes = append(selector.Attributes, attr)
		default:
			goto done
		}
	}

done:
	if !selector.IsValid() {
		return selector, fmt.Errorf("invalid simple selector at offset %d", p.pos)
	}
	return selector, nil
}

// parseAttributeSelector parses the contents of `[...]` for an attribute selector.
func (p *Parser) parseAttributeSelector() (AttributeSelector, error) {
	p.consumeWhitespace()
	name := p.parseIdentifier()
	p.consumeWhitespace()

	if p.eof() {
		return AttributeSelector{}, fmt.Errorf("unexpected EOF in attribute selector")
	}

	// If we hit ']', it's a presence selector like `[disabled]`.
	if p.currentChar() == ']' {
		p.consumeChar()
		return AttributeSelector{Name: name}, nil
	}

	var operator strings.Builder
	operator.WriteByte(p.consumeChar())

	// Two-character operators like `~=`, `|=`, `^=`, `$=`, `*=`.
	if !p.eof() && p.currentChar() == '=' {
		operator.WriteByte(p.consumeChar())
	}

	p.consumeWhitespace()

	var value string
	if p.currentChar() == '"' || p.currentChar() == '\'' {
		quote := p.currentChar()
		p.consumeChar()
		start := p.pos
		for !p.eof() && p.currentChar() != quote {
			p.pos++
		}
		value = p.input[start:p.pos]
		if !p.eof() {
			p.consumeChar()
		}
	} else {
		value = p.parseIdentifier()
	}
	p.consumeWhitespace()

	if p.eof() || p.currentChar() != ']' {
		return AttributeSelector{}, fmt.Errorf("expected ']' to close attribute selector")
	}
	p.consumeChar()

	return AttributeSelector{
		Name:     name,
		Operator: operator.String(),
		Value:    value,
	}, nil
}

// parseDeclaration parses a single 'property: value;' pair.
func (p *Parser) parseDeclaration() (prop, val string, important bool) {
	// 1. Property.
	if !isValidIdentifierStart(p.currentChar()) {
		p.skipTo(';')
		if !p.eof() {
			p.consumeChar()
		}
		return
	}
	prop = p.parseIdentifier()
	p.consumeWhitespace()

	// 2. Colon.
	if p.eof() || p.currentChar() != ':' {
		p.skipTo(';')
		if !p.eof() {
			p.consumeChar()
		}
		return
	}
	p.consumeChar()
	p.consumeWhitespace()

	// 3. Value.
	val = p.parseValue()

	// 4. !important.
	if strings.HasSuffix(strings.ToLower(val), "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}

	// 5. Optional semicolon.
	p.consumeWhitespace()
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
	return
}

// parseValue reads a CSS value until a delimiter.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if ch == ';' {
			break
		}
		if ch == '"' || ch == '\'' {
			p.skipQuotedString(ch)
			continue
		}
		if ch == '(' {
			p.consumeChar()
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

// --- Lexer-like Helpers ---

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *Parser) consumeWhitespace() {
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
}

func (p *Parser) startsWith(s string) bool {
	if p.pos+len(s) > len(p.input) {
		return false
	}
	return p.input[p.pos:p.pos+len(s)] == s
}

func (p *Parser) skipComment() {
	p.pos += 2
	endIndex := strings.Index(p.input[p.pos:], "*/")
	if endIndex == -1 {
		p.pos = len(p.input)
	} else {
		p.pos += endIndex + 2
	}
}

func (p *Parser) skipTo(targets ...byte) {
	for !p.eof() {
		ch := p.currentChar()
		for _, target := range targets {
			if ch == target {
				return
			}
		}
		p.pos++
	}
}

func (p *Parser) skipBlock(open, close byte) {
	depth := 1
	for !p.eof() {
		c := p.consumeChar()
		if c == open {
			depth++
		} else if c == close {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuotedString(quote byte) {
	p.consumeChar() // opening quote
	for !p.eof() {
		ch := p.consumeChar()
		if ch == '\\' {
			p.consumeChar()
		} else if ch == quote {
			return
		}
	}
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isValidIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}
