// internal/selector/selector_test.go
package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Save", "'Save'"},
		{"single quote", "it's", `"it's"`},
		{"double quote", `say "hi"`, `'say "hi"'`},
		{"both quotes", `a'b"c`, `concat('a', "'", 'b"c')`},
		{"trailing single with double", `x"y'`, `concat('x"y', "'", '')`},
		{"empty", "", "''"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Literal(tt.input))
		})
	}
}

func TestPathRendering(t *testing.T) {
	t.Run("should render a single step with predicates", func(t *testing.T) {
		p := Find("input", AttrEquals{Name: "id", Value: "email"})
		assert.Equal(t, "//input[@id='email']", p.String())
	})

	t.Run("should render an empty tag as wildcard", func(t *testing.T) {
		p := Find("", TextEquals{Value: "Save"})
		assert.Equal(t, "//*[normalize-space()='Save']", p.String())
	})

	t.Run("should render a label anchored following path", func(t *testing.T) {
		p := Path{
			{Axis: Descendant, Tag: "label", Predicates: []Predicate{TextContains{Value: "E-mail"}}},
			{Axis: Following, Tag: "input", Predicates: []Predicate{Position(1)}},
		}
		assert.Equal(t, "//label[contains(normalize-space(), 'E-mail')]/following::input[1]", p.String())
	})

	t.Run("should join and predicates and skip nil members", func(t *testing.T) {
		pred := And{AttrEquals{Name: "name", Value: "q"}, nil, AttrStartsWith{Name: "id", Value: "search"}}
		assert.Equal(t, "@name='q' and starts-with(@id, 'search')", RenderPredicate(pred))
	})

	t.Run("should normalize attribute contains when asked", func(t *testing.T) {
		assert.Equal(t, "contains(@class, 'btn')", RenderPredicate(AttrContains{Name: "class", Value: "btn"}))
		assert.Equal(t, "contains(normalize-space(@placeholder), 'Your email')",
			RenderPredicate(AttrContains{Name: "placeholder", Value: "Your email", Normalize: true}))
	})

	t.Run("should escape injected quotes in values", func(t *testing.T) {
		p := Find("button", TextEquals{Value: `Don't "save"`})
		assert.Equal(t, `//button[normalize-space()=concat('Don', "'", 't "save"')]`, p.String())
	})

	t.Run("should wrap an expression with a position", func(t *testing.T) {
		assert.Equal(t, "(//button[@type='submit'])[2]", Indexed("//button[@type='submit']", 2))
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		wantKind Kind
		wantExpr string
	}{
		{"//input[@id='a']", XPath, "//input[@id='a']"},
		{"(//button)[2]", XPath, "(//button)[2]"},
		{".//span", XPath, ".//span"},
		{"/html/body", XPath, "/html/body"},
		{"input[@name='q']", XPath, "input[@name='q']"},
		{"*[contains(., 'x')]", XPath, "*[contains(., 'x')]"},
		{"#email", CSS, "#email"},
		{"div.card > a", CSS, "div.card > a"},
		{"xpath=//a", XPath, "//a"},
		{"css=a[href]", CSS, "a[href]"},
		{"CSS= .x ", CSS, ".x"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q := Parse(tt.input)
			assert.Equal(t, tt.wantKind, q.Kind)
			assert.Equal(t, tt.wantExpr, q.Expr)
		})
	}

	t.Run("should format a query with its kind prefix", func(t *testing.T) {
		assert.Equal(t, "css=#a", Parse("#a").String())
		assert.Equal(t, "xpath=//a", Parse("//a").String())
	})
}

func TestIsWrappable(t *testing.T) {
	assert.True(t, IsWrappable("//a"))
	assert.True(t, IsWrappable("(//a)[1]"))
	assert.False(t, IsWrappable(".//a"))
	assert.False(t, IsWrappable("#a"))
}

func TestUnwrap(t *testing.T) {
	assert.Equal(t, "//a", Unwrap("(//a)[3]"))
	assert.Equal(t, "//a", Unwrap("((//a)[2])[1]"))
	assert.Equal(t, "//a[@id='x']", Unwrap("//a[@id='x']"))
}

func TestIsGeneric(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"//button", true},
		{"//button[2]", true},
		{"(//button)[2]", true},
		{"//*", true},
		{"//div[contains(@class, 'card')]", true},
		{"(//div[contains(@class, 'card')])[3]", true},
		{"//div[contains(concat(' ', normalize-space(@class), ' '), ' card ')]", true},
		{"//input[@id='email']", false},
		{"//input[@class='x' and @name='y']", false},
		{"//button[normalize-space()='Save']", false},
		{"//label[normalize-space()='E-mail']/following::input[1]", false},
		{"button.primary", false},
		{"div", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGeneric(tt.input))
		})
	}
}

func TestCSSToXPath(t *testing.T) {
	t.Run("should translate simple compound selectors", func(t *testing.T) {
		tests := map[string]string{
			"#email":              "//*[@id='email']",
			"input#email":         "//input[@id='email']",
			"button":              "//button",
			`input[name="q"]`:     "//input[@name='q']",
			"input[type=text]":    "//input[@type='text']",
			".btn":                "//*[contains(concat(' ', normalize-space(@class), ' '), ' btn ')]",
			"a#x.y":               "//a[@id='x' and contains(concat(' ', normalize-space(@class), ' '), ' y ')]",
			`DIV[data-testid='a']`: "//div[@data-testid='a']",
		}
		for css, want := range tests {
			assert.Equal(t, want, CSSToXPath(css), css)
		}
	})

	t.Run("should pass through selectors it does not translate", func(t *testing.T) {
		for _, css := range []string{
			"div > a",
			"div a",
			"h1 + p",
			"li ~ li",
			"a:hover",
			"a, b",
			`a[href^="https"]`,
			"input[disabled]",
			"[unterminated",
			"",
		} {
			assert.Equal(t, css, CSSToXPath(css), css)
		}
	})
}

func TestParseSimpleSelector(t *testing.T) {
	p := NewParser(`input#user.required.big[type="text"]`)
	sel, err := p.ParseSimpleSelector()
	require.NoError(t, err)
	assert.Equal(t, "input", sel.TagName)
	assert.Equal(t, "user", sel.ID)
	assert.Equal(t, []string{"required", "big"}, sel.Classes)
	require.Len(t, sel.Attributes, 1)
	assert.Equal(t, AttributeSelector{Name: "type", Operator: "=", Value: "text"}, sel.Attributes[0])

	_, err = NewParser(">").ParseSimpleSelector()
	assert.Error(t, err)
}

func TestParseDeclarations(t *testing.T) {
	t.Run("should parse properties and important flags", func(t *testing.T) {
		decls := ParseDeclarations("Display: NONE; color: red !important")
		assert.Equal(t, []Declaration{
			{Property: "display", Value: "none"},
			{Property: "color", Value: "red", Important: true},
		}, decls)
	})

	t.Run("should skip comments and malformed declarations", func(t *testing.T) {
		decls := ParseDeclarations("/* hidden */ visibility:hidden;;bogus; background: url('a;b.png')")
		require.Len(t, decls, 2)
		assert.Equal(t, "visibility", decls[0].Property)
		assert.Equal(t, "hidden", decls[0].Value)
		assert.Equal(t, "background", decls[1].Property)
		assert.Equal(t, "url('a;b.png')", decls[1].Value)
	})

	t.Run("should return nothing for empty input", func(t *testing.T) {
		assert.Empty(t, ParseDeclarations("   "))
	})
}

func TestIsTagName(t *testing.T) {
	for _, tag := range []string{"input", "*", "my-widget", "svg:rect", "h1", "_x"} {
		assert.True(t, IsTagName(tag), tag)
	}
	for _, tag := range []string{"", "input[@x", "1abc", "a b", "div/span", "a:", ":a", "a]"} {
		assert.False(t, IsTagName(tag), tag)
	}
}
