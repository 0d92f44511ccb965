// cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-locator/internal/resolver"
)

const (
	definitions = `{
  "email": {"tag": "input", "label": "E-mail"},
  "save": {"tag": "button", "xpath": "//button[@id='save']"}
}`
	snapshot = `<html><body>
  <label>E-mail</label><input name="mail">
  <button id="save">Save</button>
</body></html>`
	healed = "//label[normalize-space()='E-mail']/following::input[1]"
)

type workdir struct {
	t      *testing.T
	root   string
	config string
	html   string
}

func newWorkdir(t *testing.T) *workdir {
	t.Helper()
	root := t.TempDir()
	locators := filepath.Join(root, "locators")
	require.NoError(t, os.MkdirAll(locators, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locators, "login.json"), []byte(definitions), 0o644))

	html := filepath.Join(root, "login.html")
	require.NoError(t, os.WriteFile(html, []byte(snapshot), 0o644))

	cfg := fmt.Sprintf(`logger:
  level: error
  format: json
locators:
  dir: %s
resolver:
  primary_timeout: 300ms
  explicit_timeout_cap: 300ms
  alternate_timeout: 50ms
  strict_timeout: 50ms
  poll_interval: 10ms
`, locators)
	cfgPath := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return &workdir{t: t, root: root, config: cfgPath, html: html}
}

func (w *workdir) run(args ...string) (string, error) {
	w.t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"-c", w.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (w *workdir) overlayPath() string {
	return filepath.Join(w.root, "locators", "self_healed", "login.json")
}

func TestVersion(t *testing.T) {
	w := newWorkdir(t)
	out, err := w.run("version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestCheckHealShowUnheal(t *testing.T) {
	w := newWorkdir(t)

	out, err := w.run("check", "--page", "login", "--html", w.html, "email", "save")
	require.NoError(t, err)
	assert.Equal(t, "email\t"+healed+"\nsave\t//button[@id='save']\n", out)
	assert.FileExists(t, w.overlayPath())

	out, err = w.run("show", "--page", "login")
	require.NoError(t, err)
	assert.Contains(t, out, `"email"`)
	assert.Contains(t, out, healed)
	assert.NotContains(t, out, `"save"`, "explicit hits are not written to the overlay")

	out, err = w.run("show", "--page", "login", "--merged")
	require.NoError(t, err)
	assert.Contains(t, out, `"label": "E-mail"`)
	assert.Contains(t, out, healed)

	out, err = w.run("unheal", "--page", "login", "email")
	require.NoError(t, err)
	assert.Equal(t, "unhealed 1 locator(s) on login\n", out)
	assert.NoFileExists(t, w.overlayPath())

	out, err = w.run("show", "--page", "login")
	require.NoError(t, err)
	assert.Equal(t, "{}\n", out)
}

func TestCheckAllNamesDryRun(t *testing.T) {
	w := newWorkdir(t)
	out, err := w.run("check", "--page", "login", "--html", w.html, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "email\t"+healed+"\nsave\t//button[@id='save']\n", out)
	assert.NoFileExists(t, w.overlayPath())
}

func TestCheckReportsFailures(t *testing.T) {
	w := newWorkdir(t)
	out, err := w.run("check", "--page", "login", "--html", w.html, "email", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrEntryNotFound)
	assert.Contains(t, err.Error(), "1 of 2 locators failed to resolve")
	assert.Equal(t, "email\t"+healed+"\n", out, "successes are still printed")
}

func TestUnhealAll(t *testing.T) {
	w := newWorkdir(t)
	_, err := w.run("check", "--page", "login", "--html", w.html)
	require.NoError(t, err)

	out, err := w.run("unheal", "--page", "login", "--all")
	require.NoError(t, err)
	assert.Equal(t, "unhealed 1 locator(s) on login\n", out)
}

func TestResolveStaticEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, snapshot)
	}))
	defer srv.Close()

	w := newWorkdir(t)
	out, err := w.run("resolve", "--engine", "static", "--url", srv.URL, "--page", "login", "save")
	require.NoError(t, err)
	assert.Equal(t, "save\t//button[@id='save']\n", out)

	out, err = w.run("resolve", "--engine", "static", "--url", srv.URL, "--page", "login", "--strict", "save")
	require.NoError(t, err)
	assert.Equal(t, "save\t//button[@id='save']\n", out)
}

func TestArgumentErrors(t *testing.T) {
	w := newWorkdir(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"resolve without page", []string{"resolve", "--url", "http://x"}, "--page is required"},
		{"resolve without url", []string{"resolve", "--page", "login"}, "--url is required"},
		{"resolve with unknown engine", []string{"resolve", "--page", "login", "--url", "http://x", "--engine", "lynx"}, `unknown engine "lynx"`},
		{"check without html", []string{"check", "--page", "login"}, "--html is required"},
		{"check with missing snapshot", []string{"check", "--page", "login", "--html", "nope.html"}, "failed to open snapshot"},
		{"unheal without names", []string{"unheal", "--page", "login"}, "specify locator names or --all"},
		{"unheal with names and all", []string{"unheal", "--page", "login", "--all", "email"}, "--all cannot be combined"},
		{"invalid page", []string{"show", "--page", "../etc"}, "invalid page name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	t.Run("should fail on a missing explicit config file", func(t *testing.T) {
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "absent.yaml"), "version"})
		err := root.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("should fail on an invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("resolver:\n  primary_timeout: -1s\n"), 0o644))
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetArgs([]string{"-c", path, "version"})
		err := root.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load or validate config")
	})
}
