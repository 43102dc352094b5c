package templates

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/pkg/errors"
)

func TestRegistryLoadAndRender(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "telegram")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	tplPath := filepath.Join(dir, "greeting.tmpl")
	require.NoError(t, os.WriteFile(tplPath, []byte("Hello {{ .Name }}\n"), 0o644))

	reg, err := NewRegistry(base)
	require.NoError(t, err)

	tmpl, err := reg.GetTemplate("telegram/greeting")
	require.NoError(t, err)

	rendered, err := tmpl.Render(map[string]string{"Name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice", rendered)

	// Parsed content is kept after the file changes
	require.NoError(t, os.WriteFile(tplPath, []byte("Hi {{ .Name }}"), 0o644))
	rendered, err = tmpl.Render(map[string]string{"Name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Bob", rendered)
}

func TestRegistryLazyLoad(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	require.NoError(t, err)

	path := filepath.Join(base, "telegram", "late.tmpl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("Season {{ .Season }}"), 0o644))

	rendered, err := reg.Render("telegram/late", map[string]string{"Season": "winter"})
	require.NoError(t, err)
	assert.Equal(t, "Season winter", rendered)
}

func TestRegistryMissingTemplate(t *testing.T) {
	reg, err := NewRegistryFromFS(fstest.MapFS{}, ".")
	require.NoError(t, err)

	_, err = reg.Render("telegram/nope", nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRegistryFuncs(t *testing.T) {
	reg, err := NewRegistryFromFS(fstest.MapFS{
		"t/funcs.tmpl": {Data: []byte(`{{ code .Name }} {{ pct .P 0 }} {{ comma .N }} {{ ago .Since }}`)},
	}, ".")
	require.NoError(t, err)

	out, err := reg.Render("t/funcs", map[string]any{
		"Name":  "Fit",
		"P":     0.42,
		"N":     int64(12000),
		"Since": time.Now().Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "`Fit` 42% 12,000 2 hours ago", out)
}

func TestRegistryParseError(t *testing.T) {
	_, err := NewRegistryFromFS(fstest.MapFS{
		"t/broken.tmpl": {Data: []byte(`{{ .Name `)},
	}, ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse template t/broken")
}

func TestEmbeddedTelegramTemplates(t *testing.T) {
	ids := Get().List()
	for _, id := range []string{
		"telegram/categories",
		"telegram/fields",
		"telegram/help",
		"telegram/prediction",
		"telegram/rejection",
		"telegram/start",
		"telegram/stats",
	} {
		assert.Contains(t, ids, id)
	}
}
