// file: internal/server/server_test.go
// version: 2.1.0
// guid: 6d1a7f3e-8b24-4c59-9e0d-2f5b8a1c7e36

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/metadata"
	"github.com/jdfalk/mediashare/internal/operations"
	"github.com/jdfalk/mediashare/internal/realtime"
	servermiddleware "github.com/jdfalk/mediashare/internal/server/middleware"
	"github.com/jdfalk/mediashare/internal/visitors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	root   string
	server *Server
}

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func newTestEnv(t *testing.T, pin string) *testEnv {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "Movies/Heat.1995.1080p.mkv", strings.Repeat("m", 2048))
	writeFile(t, root, "Movies/Heat.1995.1080p.eng.srt", "1\n00:00:01,000 --> 00:00:02,000\nHello\n")
	writeFile(t, root, "Movies/Heat.1995.1080p.vtt", "WEBVTT\n")
	writeFile(t, root, "Shows/Show S01/ep1.mp4", "episode")
	writeFile(t, root, "notes.txt", "hidden by extension")
	writeFile(t, root, ".secret/file.mkv", "hidden dir")

	lib, err := catalog.New(root)
	require.NoError(t, err)

	queue := operations.NewOperationQueue(1, 4)
	t.Cleanup(func() { _ = queue.Shutdown(time.Second) })

	checker, err := servermiddleware.NewPINChecker(pin)
	require.NoError(t, err)
	sessions, err := servermiddleware.NewSessionManager("test-secret", time.Hour)
	require.NoError(t, err)

	srv, err := NewServer(Deps{
		Library:  lib,
		Metadata: metadata.NewCache(metadata.Config{Root: lib.Root()}),
		Archives: archive.NewEngine(queue, archive.Config{TempDir: t.TempDir()}),
		Queue:    queue,
		Visitors: visitors.NewRegistry(),
		Hub:      realtime.NewHub(),
		PIN:      checker,
		Sessions: sessions,
	})
	require.NoError(t, err)
	return &testEnv{root: lib.Root(), server: srv}
}

func (e *testEnv) do(t *testing.T, method, target string, body *strings.Reader, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, target string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	return e.do(t, http.MethodGet, target, nil, mutate...)
}

func acceptJSON(r *http.Request) { r.Header.Set("Accept", "application/json") }

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get(t, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[StatusResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, env.root, resp.LibraryDir)
	assert.Equal(t, 1, resp.Archive.Workers)
}

func TestViewDirectoryJSON(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get(t, "/", acceptJSON)
	require.Equal(t, http.StatusOK, w.Code)
	listing := decode[catalog.Listing](t, w)
	var names []string
	for _, e := range listing.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Movies", "Shows"}, names)
	assert.Equal(t, 2, listing.FolderCount)

	w = env.get(t, "/view/Movies?format=json&sort=size")
	require.Equal(t, http.StatusOK, w.Code)
	listing = decode[catalog.Listing](t, w)
	require.Len(t, listing.Entries, 1, "subtitles are not listed")
	assert.Equal(t, "/play/Movies/Heat.1995.1080p.mkv", listing.Entries[0].URL)
	assert.Equal(t, catalog.SortBySize, listing.Sort)
}

func TestViewDirectoryHTML(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get(t, "/view/Shows/Show%20S01")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "ep1.mp4")
	assert.Contains(t, w.Body.String(), `href="/view/Shows"`)
}

func TestViewDirectoryErrors(t *testing.T) {
	env := newTestEnv(t, "")

	assert.Equal(t, http.StatusNotFound, env.get(t, "/view/nope", acceptJSON).Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/view/notes.txt", acceptJSON).Code)

	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(env.root, "escape")))
	assert.Equal(t, http.StatusForbidden, env.get(t, "/view/escape", acceptJSON).Code)
}

type playResponse struct {
	File     catalog.PlayInfo `json:"file"`
	Metadata metadata.Record  `json:"metadata"`
}

func TestPlayFileJSON(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get(t, "/play/Movies/Heat.1995.1080p.mkv?format=json", func(r *http.Request) { r.Host = "media.lan:5000" })
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[playResponse](t, w)
	assert.Equal(t, "1080p", resp.File.Quality)
	assert.Equal(t, "vlc://http://media.lan:5000/download/Movies/Heat.1995.1080p.mkv", resp.File.VLCURL)
	assert.Len(t, resp.File.Subtitles, 2)
	assert.Equal(t, "Heat", resp.Metadata.Title)
	assert.Equal(t, "1995", resp.Metadata.Year)
	assert.True(t, resp.Metadata.Fallback)
}

func TestPlayFileHTML(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get(t, "/play/Movies/Heat.1995.1080p.mkv")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `src="/download/Movies/Heat.1995.1080p.mkv"`)
	assert.Contains(t, body, "<track")

	assert.Equal(t, http.StatusNotFound, env.get(t, "/play/Movies", acceptJSON).Code)
}

func TestDownloadFile(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get(t, "/download/Movies/Heat.1995.1080p.mkv", func(r *http.Request) { r.Header.Set("Range", "bytes=0-99") })
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, 100, w.Body.Len())

	w = env.get(t, "/download/Movies/Heat.1995.1080p.vtt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/vtt; charset=utf-8", w.Header().Get("Content-Type"))

	w = env.get(t, "/download/Movies/Heat.1995.1080p.eng.srt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, env.get(t, "/download/Movies").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/download/missing.mkv").Code)
}

func TestMetadataLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	target := "/api/metadata?" + url.Values{"file": {"Heat.1995.1080p.mkv"}, "path": {"Movies"}}.Encode()

	w := env.get(t, target)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[metadata.Record](t, w)
	assert.Equal(t, "Heat", rec.Title)
	sidecar := filepath.Join(env.root, "Movies", ".meta", "Heat.1995.1080p.mkv.json")
	assert.FileExists(t, sidecar)

	w = env.do(t, http.MethodDelete, target, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoFileExists(t, sidecar)

	w = env.get(t, "/api/metadata?file=../x&path=Movies")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.get(t, "/api/metadata?file=Show%20S01&path=Shows&is_dir=true")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[metadata.Record](t, w).IsSeries)
}

func TestServeMetadataImage(t *testing.T) {
	env := newTestEnv(t, "")
	writeFile(t, env.root, "Movies/.meta/Heat.1995.1080p.mkv.jpg", "jpegdata")

	w := env.get(t, "/metadata_img/Movies/.meta/Heat.1995.1080p.mkv.jpg")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpegdata", w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.get(t, "/metadata_img/Movies/Heat.1995.1080p.mkv").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/metadata_img/Movies/.meta/missing.jpg").Code)
}

func TestZipFlow(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get(t, "/api/start_zip/Movies")
	require.Equal(t, http.StatusOK, w.Code)
	jobID := decode[StartZipResponse](t, w).JobID
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		w := env.get(t, "/api/zip_status/"+jobID)
		return w.Code == http.StatusOK && decode[archive.Job](t, w).Status == archive.StatusReady
	}, 5*time.Second, 10*time.Millisecond)

	w = env.get(t, "/api/download_zip_result/"+jobID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename=Movies.zip`)

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"Heat.1995.1080p.mkv", "Heat.1995.1080p.eng.srt", "Heat.1995.1080p.vtt"}, names)

	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/zip_status/"+jobID).Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/download_zip_result/"+jobID).Code)
}

func TestZipDownloadAbortedKeepsResult(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get(t, "/api/start_zip/Movies")
	require.Equal(t, http.StatusOK, w.Code)
	jobID := decode[StartZipResponse](t, w).JobID

	require.Eventually(t, func() bool {
		w := env.get(t, "/api/zip_status/"+jobID)
		return w.Code == http.StatusOK && decode[archive.Job](t, w).Status == archive.StatusReady
	}, 5*time.Second, 10*time.Millisecond)

	aborted := func(r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		cancel()
		*r = *r.WithContext(ctx)
	}
	env.get(t, "/api/download_zip_result/"+jobID, aborted)

	w = env.get(t, "/api/zip_status/"+jobID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, archive.StatusReady, decode[archive.Job](t, w).Status)

	w = env.get(t, "/api/download_zip_result/"+jobID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/download_zip_result/"+jobID).Code)
}

func TestStartZipMissing(t *testing.T) {
	env := newTestEnv(t, "")
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/start_zip/nope").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/zip_status/unknown").Code)
}

func TestMyList(t *testing.T) {
	env := newTestEnv(t, "")
	id := catalog.EntryID("Heat.1995.1080p.mkv")

	w := env.get(t, "/my-list?format=json&ids="+id+",,unknown")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Count int            `json:"count"`
		Items []FavoriteItem `json:"items"`
	}](t, w)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Movies/Heat.1995.1080p.mkv", resp.Items[0].Path)
	assert.Equal(t, "Heat", resp.Items[0].Title)

	w = env.get(t, "/my-list")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Your list is empty")
}

func TestClientsEndpointRecordsVisitors(t *testing.T) {
	env := newTestEnv(t, "")
	env.get(t, "/api/health", func(r *http.Request) {
		r.RemoteAddr = "192.0.2.7:4000"
		r.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	})

	w := env.get(t, "/api/clients")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ClientsResponse](t, w)
	require.Equal(t, 2, resp.Count, "httptest default client is recorded too")

	var found bool
	for _, c := range resp.Clients {
		if c.IP == "192.0.2.7" {
			found = true
			assert.Equal(t, visitors.DevicePhone, c.DeviceKind)
		}
	}
	assert.True(t, found)
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get(t, "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, w).Code)
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get(t, "/static/app.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, env.get(t, "/static/watchparty.js").Code)
}

func TestPINGateFlow(t *testing.T) {
	env := newTestEnv(t, "4321")

	w := env.get(t, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/api/clients").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/ws").Code)

	// Ungated but still scoped
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/zip_status/unknown").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/metadata_img/Movies/Heat.1995.1080p.mkv").Code)

	w = env.get(t, "/login")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="pin"`)

	form := func(r *http.Request) { r.Header.Set("Content-Type", "application/x-www-form-urlencoded") }
	w = env.do(t, http.MethodPost, "/login", strings.NewReader("pin=0000"), form)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Incorrect PIN")
	assert.Empty(t, w.Result().Cookies())

	w = env.do(t, http.MethodPost, "/login", strings.NewReader("pin=4321"), form)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, servermiddleware.SessionCookieName, cookies[0].Name)

	withSession := func(r *http.Request) { r.AddCookie(cookies[0]) }
	assert.Equal(t, http.StatusOK, env.get(t, "/", withSession).Code)
	assert.Equal(t, http.StatusOK, env.get(t, "/api/clients", withSession).Code)

	w = env.get(t, "/login", withSession)
	assert.Equal(t, http.StatusFound, w.Code, "signed-in visitors skip the form")

	w = env.get(t, "/logout", withSession)
	assert.Equal(t, http.StatusFound, w.Code)
	require.NotEmpty(t, w.Result().Cookies())
	assert.Equal(t, -1, w.Result().Cookies()[0].MaxAge)
}

func TestLoginWithoutPINRedirectsHome(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get(t, "/login")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestCrumbs(t *testing.T) {
	assert.Equal(t, []crumb{{Name: "Home", URL: "/"}}, crumbs(""))
	assert.Equal(t, []crumb{
		{Name: "Home", URL: "/"},
		{Name: "TV", URL: "/view/TV"},
		{Name: "Show S01", URL: "/view/TV/Show%20S01"},
	}, crumbs("TV/Show S01"))
}
