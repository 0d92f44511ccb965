// internal/locator/locator_test.go
package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeOverlays struct {
	overlay Overlay
	err     error
}

func (f fakeOverlays) Load(context.Context, string) (Overlay, error) {
	return f.overlay, f.err
}

func writePage(t *testing.T, dir, page, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, page+".json"), []byte(body), 0o644))
}

const loginPage = `{
  "email": {"tag": "input", "id": "email", "xpath": "//input[@id='email']"},
  "cell": {"tag": "td", "class": "k-grid-cell", "aria-colindex": 2, "disabled": true},
  "save": {"tag": "button", "text": "Save", "alternates": ["//button[@id='old-save']"]},
  "row": {"xpath_template": "//{tag}[{class_pred}]", "defaults": {"match": "contains"}}
}`

func TestDecode(t *testing.T) {
	entries, err := Decode([]byte(loginPage))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	email := entries["email"]
	assert.Equal(t, "input", email.Tag)
	assert.Equal(t, "email", email.Attr("id"))
	assert.Equal(t, "//input[@id='email']", email.XPath)
	assert.Nil(t, email.Alternates)

	cell := entries["cell"]
	assert.Equal(t, "2", cell.Attr("aria-colindex"), "numeric attributes are normalized to strings")
	assert.Equal(t, "k-grid-cell", cell.Attr("class"))
	assert.Equal(t, map[string]any{"disabled": true}, cell.Extra)

	save := entries["save"]
	assert.Equal(t, []string{"//button[@id='old-save']"}, save.Alternates)

	row := entries["row"]
	assert.Equal(t, "//{tag}[{class_pred}]", row.Template)
	assert.Equal(t, "contains", row.Defaults["match"])

	t.Run("should not declare unusable tags", func(t *testing.T) {
		got, err := Decode([]byte(`{"a": {"tag": "input[@x", "name": "q"}, "b": {"tag": "svg:rect"}}`))
		require.NoError(t, err)
		assert.Empty(t, got["a"].Tag)
		assert.Equal(t, "input[@x", got["a"].Extra["tag"], "kept for the round trip")
		assert.Equal(t, "svg:rect", got["b"].Tag)

		data, err := Encode(got)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"tag": "input[@x"`)
	})

	t.Run("should reject malformed documents", func(t *testing.T) {
		_, err := Decode([]byte(`{"a": `))
		assert.Error(t, err)
		_, err = Decode([]byte(`{"a": "not an object"}`))
		assert.Error(t, err)
	})
}

func TestEncodeRoundTrip(t *testing.T) {
	entries, err := Decode([]byte(loginPage))
	require.NoError(t, err)

	data, err := Encode(entries)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"cell\": {\n", "output is indented with two spaces")
	assert.Contains(t, string(data), `"//button[@id='old-save']"`)

	again, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(entries, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	t.Run("should not escape html characters", func(t *testing.T) {
		data, err := Encode(map[string]Entry{"x": {CSS: "div > a"}})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"div > a"`)
	})

	t.Run("should indent nested entries under their key", func(t *testing.T) {
		data, err := Encode(map[string]Entry{"b": {CSS: "#b"}, "a": {XPath: "//a", Tag: "a"}})
		require.NoError(t, err)
		want := "{\n" +
			"  \"a\": {\n" +
			"    \"tag\": \"a\",\n" +
			"    \"xpath\": \"//a\"\n" +
			"  },\n" +
			"  \"b\": {\n" +
			"    \"css\": \"#b\"\n" +
			"  }\n" +
			"}\n"
		assert.Equal(t, want, string(data))
	})

	t.Run("should render an empty document as an empty object", func(t *testing.T) {
		for _, in := range []map[string]Entry{nil, {}} {
			data, err := Encode(in)
			require.NoError(t, err)
			assert.Equal(t, "{}\n", string(data))
		}
	})

	t.Run("should keep an empty declared alternates list", func(t *testing.T) {
		data, err := Encode(map[string]Entry{"x": {Tag: "a", Alternates: []string{}}})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"alternates": []`)
	})
}

func TestEntrySetSelector(t *testing.T) {
	e := Entry{CSS: "#old"}
	e.SetSelector("//input[@name='q']")
	assert.Equal(t, "//input[@name='q']", e.XPath)
	assert.Empty(t, e.CSS)

	e.SetSelector("input.search")
	assert.Equal(t, "input.search", e.CSS)
	assert.Empty(t, e.XPath)
	assert.Equal(t, "input.search", e.Explicit())
}

func TestMerge(t *testing.T) {
	base := Entry{
		Tag:        "td",
		Attributes: map[string]string{"class": "k-grid-cell", "aria-colindex": "2"},
		CSS:        "td.k-grid-cell",
		Alternates: []string{"//td[1]"},
	}

	t.Run("should keep base guards and override selector fields", func(t *testing.T) {
		overlay := Entry{
			XPath:      "(//td[@aria-colindex='2'])[3]",
			Alternates: []string{"(//td[@aria-colindex='2'])[3]"},
		}
		got := Merge(base, overlay)
		want := Entry{
			Tag:        "td",
			Attributes: map[string]string{"class": "k-grid-cell", "aria-colindex": "2"},
			XPath:      "(//td[@aria-colindex='2'])[3]",
			Alternates: []string{"(//td[@aria-colindex='2'])[3]"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("merge mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should merge attributes key by key", func(t *testing.T) {
		got := Merge(base, Entry{Attributes: map[string]string{"role": "gridcell"}})
		assert.Equal(t, "k-grid-cell", got.Attr("class"))
		assert.Equal(t, "gridcell", got.Attr("role"))
		assert.Equal(t, "td.k-grid-cell", got.CSS)
		assert.Equal(t, []string{"//td[1]"}, got.Alternates, "undeclared overlay alternates keep the base list")
	})

	t.Run("should not mutate the base entry", func(t *testing.T) {
		_ = Merge(base, Entry{Attributes: map[string]string{"class": "other"}, Alternates: []string{"x"}})
		assert.Equal(t, "k-grid-cell", base.Attr("class"))
		assert.Equal(t, []string{"//td[1]"}, base.Alternates)
	})

	t.Run("should include overlay only names verbatim", func(t *testing.T) {
		merged := MergeAll(map[string]Entry{"a": {Tag: "a"}}, Overlay{"b": {XPath: "//b[@id='b']"}})
		require.Len(t, merged, 2)
		assert.Equal(t, "//b[@id='b']", merged["b"].XPath)
	})
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "login", loginPage)

	t.Run("should load base definitions", func(t *testing.T) {
		store := NewStore(dir, nil, nil)
		entries, err := store.Load("login")
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("should fail with ErrFileNotFound for a missing page", func(t *testing.T) {
		store := NewStore(dir, nil, nil)
		_, err := store.Load("nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFileNotFound))
		assert.Contains(t, err.Error(), "nope.json")
	})

	t.Run("should surface parse errors for malformed base files", func(t *testing.T) {
		writePage(t, dir, "broken", `{"x": [}`)
		store := NewStore(dir, nil, nil)
		_, err := store.Load("broken")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrFileNotFound))
	})

	t.Run("should reject page names with path elements", func(t *testing.T) {
		store := NewStore(dir, nil, nil)
		_, err := store.Load("../etc/passwd")
		assert.ErrorIs(t, err, ErrInvalidPage)
	})

	t.Run("should merge the overlay field by field", func(t *testing.T) {
		store := NewStore(dir, fakeOverlays{overlay: Overlay{
			"save": {XPath: "//button[normalize-space()='Save']", Alternates: []string{"//button[normalize-space()='Save']"}},
			"new":  {CSS: "#new"},
		}}, nil)
		entries, err := store.LoadMerged(context.Background(), "login")
		require.NoError(t, err)
		require.Len(t, entries, 5)
		assert.Equal(t, "button", entries["save"].Tag)
		assert.Equal(t, "Save", entries["save"].Text)
		assert.Equal(t, "//button[normalize-space()='Save']", entries["save"].XPath)
		assert.Equal(t, "#new", entries["new"].CSS)
	})

	t.Run("should degrade to base definitions when the overlay fails", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		store := NewStore(dir, fakeOverlays{err: errors.New("boom")}, zap.New(core))
		entries, err := store.LoadMerged(context.Background(), "login")
		require.NoError(t, err)
		assert.Empty(t, entries["save"].XPath)
		assert.Equal(t, 1, logs.FilterMessageSnippet("healed overlay").Len())
	})

	t.Run("should be idempotent", func(t *testing.T) {
		store := NewStore(dir, fakeOverlays{overlay: Overlay{"email": {Text: "E-mail"}}}, nil)
		first, err := store.LoadMerged(context.Background(), "login")
		require.NoError(t, err)
		second, err := store.LoadMerged(context.Background(), "login")
		require.NoError(t, err)
		assert.True(t, cmp.Equal(first, second))
	})
}

func TestRenderTemplate(t *testing.T) {
	t.Run("should fill macros from entry and params", func(t *testing.T) {
		e := Entry{
			Tag:        "li",
			Attributes: map[string]string{"class": "k-item  active"},
			Template:   "//{tag}[{class_pred} and {attrs_pred} and {text_pred}]",
		}
		got, err := RenderTemplate(e, map[string]any{
			"text":  "Home",
			"attrs": map[string]any{"role": "option", "class": "ignored", "aria-hidden": false},
		})
		require.NoError(t, err)
		assert.Equal(t,
			"//li[contains(concat(' ', normalize-space(@class), ' '), ' k-item ') and "+
				"contains(concat(' ', normalize-space(@class), ' '), ' active ') and "+
				"@role='option' and normalize-space(.)='Home']",
			got)
	})

	t.Run("should merge params over defaults and wrap the index", func(t *testing.T) {
		e := Entry{
			Template: "//{tag}[{desc_text_pred}]",
			Defaults: map[string]any{"match": "contains", "tag": "span"},
		}
		got, err := RenderTemplate(e, map[string]any{"text": "it's", "index": float64(2)})
		require.NoError(t, err)
		assert.Equal(t, `(//span[contains(normalize-space(), "it's")])[2]`, got)

		got, err = RenderTemplate(e, map[string]any{"text": "Go", "match": "startswith"})
		require.NoError(t, err)
		assert.Equal(t, "//span[starts-with(normalize-space(), 'Go')]", got)
	})

	t.Run("should use always-true placeholders for empty macros", func(t *testing.T) {
		got, err := RenderTemplate(Entry{Template: "//{tag}[{class_pred}][{text_pred}][{attrs_pred}]"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "//*[1=1][1=1][1=1]", got)
	})

	t.Run("should render the raw text literal and literal braces", func(t *testing.T) {
		got, err := RenderTemplate(Entry{Template: "//a[.={text}][{{x}}]"}, map[string]any{"text": "A"})
		require.NoError(t, err)
		assert.Equal(t, "//a[.='A'][{x}]", got)
	})

	t.Run("should reject missing templates and unknown macros", func(t *testing.T) {
		_, err := RenderTemplate(Entry{Tag: "a"}, nil)
		assert.ErrorIs(t, err, ErrNoTemplate)
		_, err = RenderTemplate(Entry{Template: "//{nope}"}, nil)
		assert.ErrorIs(t, err, ErrUnknownMacro)
		_, err = RenderTemplate(Entry{Template: "//a"}, map[string]any{"index": "x"})
		assert.Error(t, err)
	})
}
