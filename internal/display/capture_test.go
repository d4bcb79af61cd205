package display

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/banshee-data/liftview/internal/fsutil"
	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturer_Save(t *testing.T) {
	dir := t.TempDir()
	mfs := fsutil.NewMemoryFileSystem()
	c := NewCapturer(mfs, dir)

	f, err := mechanism.LiftArmIntake().Project(teleop(), 200, 150)
	require.NoError(t, err)

	path, err := c.Save("match 12.png", f)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "match_12.png"), path)

	data, err := mfs.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	path, err = c.Save("../../escape.SVG", f)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.SVG"), path, "traversal is sanitised away")
	data, err = mfs.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	_, err = c.Save("frame.gif", f)
	assert.ErrorIs(t, err, ErrCaptureFormat)

	_, err = c.Save("empty.png", mechanism.Frame{})
	assert.ErrorIs(t, err, mechanism.ErrRenderFailure)
}

func TestCapturer_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	c := NewCapturer(fsutil.OSFileSystem{}, dir)
	f, err := mechanism.LiftArm().Project(teleop(), 100, 100)
	require.NoError(t, err)

	path, err := c.Save("arm.svg", f)
	require.NoError(t, err)
	info, err := fsutil.OSFileSystem{}.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWeb_Capture(t *testing.T) {
	h, mb := newHost(t, 320, 240)
	mfs := fsutil.NewMemoryFileSystem()
	dir := t.TempDir()
	web := NewWebServer(h, WithCapturer(NewCapturer(mfs, dir)))
	mux := web.ServeMux()
	deliver(t, h, mb, teleop())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/capture", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)
	var got CaptureResponse
	testutil.DecodeJSON(t, w, &got)
	assert.Equal(t, filepath.Join(dir, "liftview-000001.png"), got.Path)
	assert.Equal(t, uint64(1), got.Generation)
	assert.Equal(t, []string{got.Path}, mfs.Files())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/capture?name=frame.bmp", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/capture", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestWeb_CaptureDisabled(t *testing.T) {
	web, _, _ := newWeb(t)
	w := httptest.NewRecorder()
	web.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/capture", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}
