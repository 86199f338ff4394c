package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCategoryLog(t *testing.T, workspace string, cat Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	path := filepath.Join(workspace, ".agentcluster", "logs", date+"_"+string(cat)+".log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInitialize_RequiresWorkspace(t *testing.T) {
	err := Initialize("", Settings{DebugMode: true})
	require.Error(t, err)
}

func TestProductionMode_NoFiles(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: false}))
	defer CloseAll()

	Campaign("should not be written")

	_, err := os.Stat(filepath.Join(ws, ".agentcluster", "logs"))
	assert.True(t, os.IsNotExist(err), "logs dir must not exist in production mode")
	assert.Nil(t, Get(CategoryCampaign).sugar)
}

func TestDebugMode_WritesPerCategoryFiles(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "debug"}))
	defer CloseAll()

	Campaign("phase %s entered", "building")
	Autopoiesis("tool %q ready", "Custom Handler")
	CloseAll()

	assert.Contains(t, readCategoryLog(t, ws, CategoryCampaign), "phase building entered")
	assert.Contains(t, readCategoryLog(t, ws, CategoryAutopoiesis), `tool "Custom Handler" ready`)
}

func TestCategoryFilter(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"intent": false},
	}))
	defer CloseAll()

	assert.False(t, IsCategoryEnabled(CategoryIntent))
	assert.True(t, IsCategoryEnabled(CategoryCampaign), "unlisted categories default to enabled")
}

func TestLevelFiltering(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "warn"}))
	defer CloseAll()

	l := Get(CategoryServer)
	l.Info("quiet info")
	l.Warn("loud warning")
	CloseAll()

	out := readCategoryLog(t, ws, CategoryServer)
	assert.False(t, strings.Contains(out, "quiet info"))
	assert.Contains(t, out, "loud warning")
}

func TestJSONFormat(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws, Settings{DebugMode: true, JSONFormat: true}))
	defer CloseAll()

	Journal("run %s recorded", "abc")
	CloseAll()

	out := readCategoryLog(t, ws, CategoryJournal)
	assert.Contains(t, out, `"cat":"journal"`)
	assert.Contains(t, out, `"msg":"run abc recorded"`)
}
