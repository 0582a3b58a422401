package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoutesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alert_routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRouteTable_ResolveAndFallback(t *testing.T) {
	path := writeRoutesFile(t, `
default_subject: vms.alerts.custom
channels:
  security_team: vms.alerts.security
  webhooks: vms.alerts.webhooks
`)
	table := NewRouteTable(path)

	assert.Equal(t, "vms.alerts.security", table.Resolve("security_team"))
	assert.Equal(t, "vms.alerts.webhooks", table.Resolve("webhooks"))
	assert.Equal(t, "vms.alerts.custom", table.Resolve("pager"))
	assert.Equal(t, "vms.alerts.custom", table.Default())
}

func TestRouteTable_MissingFileUsesDefaults(t *testing.T) {
	table := NewRouteTable(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, DefaultAlertSubject, table.Resolve("security_team"))
	assert.Equal(t, DefaultAlertSubject, table.Default())
}

func TestRouteTable_EmptyPathUsesDefaults(t *testing.T) {
	table := NewRouteTable("")
	assert.Equal(t, DefaultAlertSubject, table.Resolve("anything"))
}

func TestRouteTable_Reload(t *testing.T) {
	path := writeRoutesFile(t, `
channels:
  security_team: vms.alerts.security
`)
	table := NewRouteTable(path)
	require.Equal(t, "vms.alerts.security", table.Resolve("security_team"))

	require.NoError(t, os.WriteFile(path, []byte(`
default_subject: vms.alerts.v2
channels:
  security_team: vms.alerts.security.v2
`), 0o644))
	require.NoError(t, table.Reload())

	assert.Equal(t, "vms.alerts.security.v2", table.Resolve("security_team"))
	assert.Equal(t, "vms.alerts.v2", table.Resolve("webhooks"))
}

func TestRouteTable_BlankSubjectIgnored(t *testing.T) {
	path := writeRoutesFile(t, `
channels:
  security_team: ""
`)
	table := NewRouteTable(path)
	assert.Equal(t, DefaultAlertSubject, table.Resolve("security_team"))
}

func TestRouteTable_BadYamlKeepsPreviousRoutes(t *testing.T) {
	path := writeRoutesFile(t, `
channels:
  security_team: vms.alerts.security
`)
	table := NewRouteTable(path)
	require.Equal(t, "vms.alerts.security", table.Resolve("security_team"))

	require.NoError(t, os.WriteFile(path, []byte("{not: [valid"), 0o644))
	assert.Error(t, table.Reload())

	// Last good config stays in effect.
	assert.Equal(t, "vms.alerts.security", table.Resolve("security_team"))
}

func TestNotifierSubjectsFor(t *testing.T) {
	path := writeRoutesFile(t, `
channels:
  security_team: vms.alerts.security
  ops: vms.alerts.security
  webhooks: vms.alerts.webhooks
`)
	n := NewNATSNotifier(nil, NewRouteTable(path), 0)

	t.Run("fans out and dedupes shared subjects", func(t *testing.T) {
		subjects := n.subjectsFor(map[string]any{
			"channels": []string{"security_team", "ops", "webhooks"},
		})
		assert.Equal(t, []string{"vms.alerts.security", "vms.alerts.webhooks"}, subjects)
	})

	t.Run("no channels publishes to the default", func(t *testing.T) {
		subjects := n.subjectsFor(map[string]any{})
		assert.Equal(t, []string{DefaultAlertSubject}, subjects)
	})

	t.Run("unknown channel routes to the default", func(t *testing.T) {
		subjects := n.subjectsFor(map[string]any{"channels": []string{"pager"}})
		assert.Equal(t, []string{DefaultAlertSubject}, subjects)
	})

	t.Run("json-decoded channels resolve the same", func(t *testing.T) {
		subjects := n.subjectsFor(map[string]any{
			"channels": []any{"security_team", "webhooks"},
		})
		assert.Equal(t, []string{"vms.alerts.security", "vms.alerts.webhooks"}, subjects)
	})

	t.Run("unexpected channel type falls back to the default", func(t *testing.T) {
		subjects := n.subjectsFor(map[string]any{"channels": 42})
		assert.Equal(t, []string{DefaultAlertSubject}, subjects)
	})
}
