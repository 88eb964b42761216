package artifacts

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveScreenshot(t *testing.T) {
	dir, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	payload := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	path, err := dir.SaveScreenshot("carrierA", "unknown-step", "t1", payload)
	require.NoError(t, err)

	assert.Equal(t, "carrierA-unknown-step-t1.png", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(data))
}

func TestSaveScreenshotRejectsBadPayload(t *testing.T) {
	dir, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = dir.SaveScreenshot("carrierA", "ctx", "t1", "not base64 !!!")
	assert.Error(t, err)
}

func TestSaveHTML(t *testing.T) {
	dir, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	path, err := dir.SaveHTML("carrierA", "error-page", "t1", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "carrierA-error-page-t1.html", filepath.Base(path))
}

func TestFilenameSanitization(t *testing.T) {
	dir, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	path, err := dir.SaveHTML("carrier/A", "step one", "../t1", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "carrier_A-step_one-.._t1.html", filepath.Base(path))
	// The artifact stays inside the directory.
	assert.Equal(t, dir.Path(), filepath.Dir(path))
}

func TestNewCreatesNestedDir(t *testing.T) {
	base := t.TempDir()
	dir, err := New(filepath.Join(base, "a", "b"), nil)
	require.NoError(t, err)

	info, err := os.Stat(dir.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
