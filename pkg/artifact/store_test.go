package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/webshots/pkg/outcome"
)

func TestScreenshotPathCreatesDir(t *testing.T) {
	s := NewStore(t.TempDir())
	path, err := s.ScreenshotPath("000003", "landing")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "000003", "landing.png"), path)
	assert.DirExists(t, filepath.Join(s.Root(), "000003"))
}

func TestRemoveStaleIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())

	// Nothing there yet: still fine.
	require.NoError(t, s.RemoveStale("000003", "landing"))

	path, err := s.ScreenshotPath("000003", "landing")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, s.WritePageSource("000003", "landing", "<html></html>"))

	require.NoError(t, s.RemoveStale("000003", "landing"))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, s.PageSourcePath("000003", "landing"))

	require.NoError(t, s.RemoveStale("000003", "landing"))
}

func TestWriteInfo(t *testing.T) {
	s := NewStore(t.TempDir())
	results := map[string]outcome.Outcome{
		"landing":   outcome.Duration(2.25),
		"view-data": outcome.Timeout(),
		"edit":      outcome.Errorf("no such element"),
	}
	require.NoError(t, s.WriteInfo("000003", results))

	raw, err := os.ReadFile(filepath.Join(s.Root(), "000003", "info.yaml"))
	require.NoError(t, err)

	var doc struct {
		Times    map[string]float64 `yaml:"times"`
		Timeouts []string           `yaml:"timeouts"`
		Errors   map[string]string  `yaml:"errors"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, map[string]float64{"landing": 2.25}, doc.Times)
	assert.Equal(t, []string{"view-data"}, doc.Timeouts)
	assert.Equal(t, map[string]string{"edit": "no such element"}, doc.Errors)
}

func TestWriteSummary(t *testing.T) {
	s := NewStore(t.TempDir())
	results := map[string]map[string]outcome.Outcome{
		"000003": {"landing": outcome.Duration(1.0)},
		"000004": {"landing": outcome.Timeout()},
	}
	require.NoError(t, s.WriteSummary(results))

	raw, err := os.ReadFile(filepath.Join(s.Root(), "summary.yaml"))
	require.NoError(t, err)

	var doc map[string]struct {
		Times    map[string]float64 `yaml:"times"`
		Timeouts []string           `yaml:"timeouts"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	require.Len(t, doc, 2)
	assert.Equal(t, 1.0, doc["000003"].Times["landing"])
	assert.Equal(t, []string{"landing"}, doc["000004"].Timeouts)
}
