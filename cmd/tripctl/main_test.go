package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDatesCommand(t *testing.T) {
	out, errOut, err := execute(t, "dates", "2025-10-01 ~ 2025-10-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-10-01\n2025-10-02\n2025-10-03\n", out)
	assert.Empty(t, errOut)
}

func TestDatesCommandDegraded(t *testing.T) {
	orig := nowFunc
	nowFunc = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = orig })

	out, errOut, err := execute(t, "dates", "sometime", "soon")
	require.NoError(t, err)
	assert.Contains(t, errOut, "degraded")
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestCalcCommand(t *testing.T) {
	out, _, err := execute(t, "calc", "2 * (3 + 4)")
	require.NoError(t, err)
	assert.Equal(t, "14\n", out)

	out, _, err = execute(t, "calc", "120", "/", "8")
	require.NoError(t, err)
	assert.Equal(t, "15\n", out)

	_, _, err = execute(t, "calc", "1/0")
	assert.Error(t, err)
}

func TestICSCommand(t *testing.T) {
	out, _, err := execute(t, "ics", "--cities", "Kyoto, Osaka", "--dates", "2025-10-01 ~ 2025-10-02")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "Trip to Kyoto")
}

func TestPlanCommandRequiresFlags(t *testing.T) {
	_, _, err := execute(t, "plan", "--cities", "Kyoto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestFetchCommand(t *testing.T) {
	t.Setenv("BROWSERLESS_API_KEY", "")
	t.Setenv("BROWSE_FORMAT", "text")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Kyoto guide</h1><p>Temples and gardens.</p><script>x()</script></body></html>`))
	}))
	defer srv.Close()

	out, _, err := execute(t, "fetch", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Kyoto guide")
	assert.Contains(t, out, "Temples and gardens.")
	assert.NotContains(t, out, "x()")
}

func TestSearchCommandNeedsKey(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "")
	_, _, err := execute(t, "search", "kyoto", "weather")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "cli.db"))

	out, _, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrated sqlite3 database\n", out)
}
