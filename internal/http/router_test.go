package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/config"
	"github.com/mrlokans/kompanion/internal/database"
	"github.com/mrlokans/kompanion/internal/database/books"
	"github.com/mrlokans/kompanion/internal/library"
	"github.com/mrlokans/kompanion/internal/progress"
	"github.com/mrlokans/kompanion/internal/stats"
	"github.com/mrlokans/kompanion/internal/storage"
	"github.com/mrlokans/kompanion/internal/tasks"
)

const (
	testAdmin         = "admin"
	testAdminPassword = "admin-password"
)

type recordingPurgeQueue struct {
	mu    sync.Mutex
	queue []tasks.PurgeDeviceStatisticsTask
	err   error
}

func (q *recordingPurgeQueue) EnqueueDevicePurge(ctx context.Context, device string, removedAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.queue = append(q.queue, tasks.PurgeDeviceStatisticsTask{Device: device, RemovedAt: removedAt})
	return nil
}

func (q *recordingPurgeQueue) devices() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var names []string
	for _, task := range q.queue {
		names = append(names, task.Device)
	}
	return names
}

// flakyStatistics fails Purge while purgeErr is set.
type flakyStatistics struct {
	*stats.Service
	purgeErr error
}

func (f *flakyStatistics) Purge(ctx context.Context, principal string) error {
	if f.purgeErr != nil {
		return f.purgeErr
	}
	return f.Service.Purge(ctx, principal)
}

type testServer struct {
	router  *gin.Engine
	stats   *flakyStatistics
	devices *auth.CredentialStore
	purges  *recordingPurgeQueue
}

type serverOption func(*RouterConfig)

func withoutPurgeQueue() serverOption {
	return func(cfg *RouterConfig) { cfg.PurgeQueue = nil }
}

func withMaxUpload(n int64) serverOption {
	return func(cfg *RouterConfig) { cfg.MaxStatisticsUploadBytes = n }
}

func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase(config.Database{
		Driver: config.DatabaseDriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "kompanion.db"),
	}, database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := auth.NewCredentialStore(auth.AdminCredential{Username: testAdmin, Password: testAdminPassword}, auth.NewMemoryDeviceStore())
	for _, name := range []string{"kobo", "kindle"} {
		_, err := store.RegisterDevice(ctx, testAdmin, name, name+"-secret")
		require.NoError(t, err)
	}

	blobs := storage.NewMemory()
	statsService := &flakyStatistics{Service: stats.NewService(blobs)}
	purges := &recordingPurgeQueue{}

	cfg := RouterConfig{
		Authenticator: auth.NewService(store),
		Progress:      progress.NewLedger(progress.NewMemoryRepository()),
		Statistics:    statsService,
		Devices:       store,
		Books:         library.NewShelf(blobs, books.NewRepository(db.DB)),
		PurgeQueue:    purges,
		Database:      db,
		Blobs:         blobs,
		Version:       "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{router: NewRouter(cfg), stats: statsService, devices: store, purges: purges}
}

func asDevice(name string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(name, name+"-secret") }
}

func asKOReader(name string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(auth.HeaderSyncUser, name)
		r.Header.Set(auth.HeaderSyncKey, auth.HashDeviceSecret(name+"-secret"))
	}
}

func asAdmin(r *http.Request) {
	r.SetBasicAuth(testAdmin, testAdminPassword)
}

func (s *testServer) do(method, path string, body []byte, decorate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if decorate != nil {
		decorate(req)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRouter_HealthNeedsNoAuth(t *testing.T) {
	s := setupTestServer(t)

	for _, path := range []string{"/health", "/healthcheck", "/ping"} {
		w := s.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	s := setupTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodPut, "/syncs/progress"},
		{http.MethodGet, "/syncs/progress/abc"},
		{http.MethodGet, "/users/auth"},
		{MethodPropfind, "/"},
		{http.MethodGet, "/statistics.sqlite3"},
		{http.MethodGet, "/api/devices"},
		{http.MethodGet, "/api/books"},
	}
	for _, route := range routes {
		w := s.do(route.method, route.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestRouter_UsersAuth(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/users/auth", nil, asKOReader("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", decodeJSON(t, w)["authorized"])

	w = s.do(http.MethodGet, "/users/auth", nil, func(r *http.Request) {
		r.Header.Set(auth.HeaderSyncUser, "kobo")
		r.Header.Set(auth.HeaderSyncKey, auth.HashDeviceSecret("wrong"))
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_ProgressRoundTrip(t *testing.T) {
	s := setupTestServer(t)

	body := []byte(`{"document":"0b229176d4e8db7f6d2b5a4952368d7a","percentage":0.42,"progress":"/body/DocFragment[12]","device":"Kobo Libra","device_id":"K1","timestamp":1700000000}`)
	w := s.do(http.MethodPut, "/syncs/progress", body, asKOReader("kobo"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1700000000, decodeJSON(t, w)["timestamp"])

	// Another device of the same owner reads it back.
	w = s.do(http.MethodGet, "/progress/0b229176d4e8db7f6d2b5a4952368d7a", nil, asDevice("kindle"))
	require.Equal(t, http.StatusOK, w.Code)
	record := decodeJSON(t, w)
	assert.Equal(t, "0b229176d4e8db7f6d2b5a4952368d7a", record["document"])
	assert.Equal(t, 0.42, record["percentage"])
	assert.Equal(t, "/body/DocFragment[12]", record["progress"])
	assert.Equal(t, "Kobo Libra", record["device"])
	assert.Equal(t, "K1", record["device_id"])
}

func TestRouter_ProgressMissingDocument(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/progress/unknown", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/syncs/progress/unknown", nil, asKOReader("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "{}", w.Body.String())
}

func TestRouter_ProgressStaleUpdateConflicts(t *testing.T) {
	s := setupTestServer(t)

	newer := []byte(`{"document":"doc","percentage":60,"progress":"p60","device":"kobo","timestamp":200}`)
	older := []byte(`{"document":"doc","percentage":10,"progress":"p10","device":"kindle","timestamp":100}`)

	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/progress", newer, asDevice("kobo")).Code)

	w := s.do(http.MethodPut, "/progress", older, asDevice("kindle"))
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, "conflict", resp["code"])
	details, ok := resp["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p60", details["progress"])

	w = s.do(http.MethodGet, "/progress/doc", nil, asDevice("kindle"))
	assert.Equal(t, "p60", decodeJSON(t, w)["progress"])
}

func TestRouter_ProgressValidation(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"document":`},
		{"missing document", `{"percentage":5}`},
		{"missing percentage", `{"document":"doc"}`},
		{"percentage out of range", `{"document":"doc","percentage":101}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPut, "/progress", []byte(tt.body), asDevice("kobo"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRouter_ProgressDefaultsDeviceToPrincipal(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPut, "/progress", []byte(`{"document":"doc","percentage":1}`), asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	record := decodeJSON(t, w)
	assert.Equal(t, "kobo", record["device"])
	assert.Greater(t, record["timestamp"], float64(0))
}

func TestRouter_ListProgress(t *testing.T) {
	s := setupTestServer(t)

	for _, doc := range []string{"a", "b"} {
		w := s.do(http.MethodPut, "/progress", []byte(`{"document":"`+doc+`","percentage":1}`), asDevice("kobo"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(http.MethodGet, "/api/progress", nil, asDevice("kindle"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeJSON(t, w)["total"])
}

func TestRouter_StatisticsRoundTrip(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/statistics.sqlite3", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	payload := []byte("SQLite format 3\x00 kobo stats")
	w = s.do(http.MethodPut, "/statistics.sqlite3", payload, asDevice("kobo"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/statistics.sqlite3", nil, asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))

	// Statistics are per device, not per owner.
	w = s.do(http.MethodGet, "/statistics.sqlite3", nil, asDevice("kindle"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_StatisticsOverwrite(t *testing.T) {
	s := setupTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("a much longer first upload"), asDevice("kobo")).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("short"), asDevice("kobo")).Code)

	w := s.do(http.MethodGet, "/statistics.sqlite3", nil, asDevice("kobo"))
	assert.Equal(t, "short", w.Body.String())
}

func TestRouter_StatisticsRejectsEmptyUpload(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPut, "/statistics.sqlite3", []byte{}, asDevice("kobo"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_StatisticsRejectsOversizeUpload(t *testing.T) {
	s := setupTestServer(t, withMaxUpload(8))

	w := s.do(http.MethodPut, "/statistics.sqlite3", []byte("0123456789abcdef"), asDevice("kobo"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	exists, err := s.stats.Exists(context.Background(), "kobo")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRouter_Propfind(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(MethodPropfind, "/", nil, asDevice("kobo"))
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "<D:multistatus")
	assert.NotContains(t, w.Body.String(), stats.FileName)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("data"), asDevice("kobo")).Code)

	w = s.do(MethodPropfind, "/", nil, asDevice("kobo"))
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "<D:href>/"+stats.FileName+"</D:href>")
	assert.NotContains(t, w.Body.String(), "getlastmodified", "no fabricated modification time")
}

func TestRouter_DevicesAdminOnly(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/api/devices", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/devices", nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeJSON(t, w)["total"])
}

func TestRouter_RegisterDevice(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"name":"pocketbook","password":"pb-secret"}`, http.StatusCreated},
		{"duplicate", `{"name":"kobo","password":"x"}`, http.StatusConflict},
		{"invalid name", `{"name":"a b","password":"x"}`, http.StatusBadRequest},
		{"reserved name", `{"name":"admin","password":"x"}`, http.StatusBadRequest},
		{"missing password", `{"name":"boox"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/devices", []byte(tt.body), asAdmin)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	// The new device can authenticate right away.
	w := s.do(http.MethodGet, "/users/auth", nil, func(r *http.Request) { r.SetBasicAuth("pocketbook", "pb-secret") })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RemoveDevicePurgesStatistics(t *testing.T) {
	s := setupTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("data"), asDevice("kobo")).Code)

	w := s.do(http.MethodDelete, "/api/devices/kobo", nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.purges.devices(), "nothing to retry after an inline purge")

	exists, err := s.stats.Exists(context.Background(), "kobo")
	require.NoError(t, err)
	assert.False(t, exists)

	w = s.do(http.MethodGet, "/users/auth", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodDelete, "/api/devices/kobo", nil, asAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RemoveDevicePurgesWithoutQueue(t *testing.T) {
	s := setupTestServer(t, withoutPurgeQueue())

	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("data"), asDevice("kobo")).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/devices/kobo", nil, asAdmin).Code)

	exists, err := s.stats.Exists(context.Background(), "kobo")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRouter_RemoveDeviceQueuesRetryWhenPurgeFails(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("data"), asDevice("kobo")).Code)

	s.stats.purgeErr = assert.AnError
	before := time.Now()
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/devices/kobo", nil, asAdmin).Code)

	require.Equal(t, []string{"kobo"}, s.purges.devices())
	assert.False(t, s.purges.queue[0].RemovedAt.Before(before))

	// The retry removes the old blob once storage recovers.
	s.stats.purgeErr = nil
	process := tasks.PurgeDeviceStatisticsProcessor(s.stats, s.devices)
	require.NoError(t, process(context.Background(), s.purges.queue[0]))

	exists, err := s.stats.Exists(context.Background(), "kobo")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRouter_QueuedPurgeSparesReRegisteredDevice(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("OLD-DEVICE-STATS"), asDevice("kobo")).Code)

	s.stats.purgeErr = assert.AnError
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/devices/kobo", nil, asAdmin).Code)
	require.Len(t, s.purges.queue, 1)
	s.stats.purgeErr = nil

	w := s.do(http.MethodPost, "/api/devices", []byte(`{"name":"kobo","password":"kobo-secret"}`), asAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, http.StatusCreated, s.do(http.MethodPut, "/statistics.sqlite3", []byte("NEW-DEVICE-STATS"), asDevice("kobo")).Code)

	process := tasks.PurgeDeviceStatisticsProcessor(s.stats, s.devices)
	for _, task := range s.purges.queue {
		require.NoError(t, process(context.Background(), task))
	}

	w = s.do(http.MethodGet, "/statistics.sqlite3", nil, asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NEW-DEVICE-STATS", w.Body.String())
}

func TestRouter_RemoveDeviceSucceedsWhenPurgeAndQueueFail(t *testing.T) {
	s := setupTestServer(t)
	s.stats.purgeErr = assert.AnError
	s.purges.err = assert.AnError

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/devices/kobo", nil, asAdmin).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/users/auth", nil, asDevice("kobo")).Code)
}

func multipartBook(t *testing.T, filename string, content []byte, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func (s *testServer) uploadBook(t *testing.T, filename string, content []byte, fields map[string]string, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBook(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	decorate(req)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRouter_BooksLifecycle(t *testing.T) {
	s := setupTestServer(t)
	content := []byte("It was a bright cold day in April, and the clocks were striking thirteen.")

	w := s.uploadBook(t, "Nineteen Eighty-Four - George Orwell.txt", content, nil, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	book := decodeJSON(t, w)
	id, _ := book["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Nineteen Eighty-Four", book["title"])
	assert.Equal(t, "George Orwell", book["author"])
	assert.Equal(t, "txt", book["format"])

	w = s.do(http.MethodGet, "/api/books", nil, asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeJSON(t, w)["total_count"])

	w = s.do(http.MethodGet, "/api/books/"+id, nil, asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, book["document_id"], decodeJSON(t, w)["document_id"])

	w = s.do(http.MethodGet, "/api/books/"+id+"/download", nil, asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
	assert.Equal(t, `attachment; filename="Nineteen Eighty-Four.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))

	w = s.uploadBook(t, "copy.txt", content, nil, asAdmin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodDelete, "/api/books/"+id, nil, asDevice("kobo"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/api/books/"+id, nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/books/"+id, nil, asDevice("kobo"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/api/books/"+id+"/download", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_UpdateBookMetadata(t *testing.T) {
	s := setupTestServer(t)

	w := s.uploadBook(t, "Solaris - Stanislaw Lem.txt", []byte("ocean"), nil, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decodeJSON(t, w)["id"].(string)

	body := []byte(`{"title":"Solaris (1961)","publisher":"Faber"}`)
	w = s.do(http.MethodPut, "/api/books/"+id, body, asDevice("kobo"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/books/"+id, body, asAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeJSON(t, w)
	assert.Equal(t, "Solaris (1961)", updated["title"])
	assert.Equal(t, "Stanislaw Lem", updated["author"])
	assert.Equal(t, "Faber", updated["publisher"])

	w = s.do(http.MethodGet, "/api/books/"+id, nil, asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Solaris (1961)", decodeJSON(t, w)["title"])

	w = s.do(http.MethodPut, "/api/books/"+id, []byte(`{not json`), asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/books/missing", body, asAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func coveredEPUB(t *testing.T, cover []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string][]byte{
		"mimetype": []byte("application/epub+zip"),
		"META-INF/container.xml": []byte(`<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`),
		"content.opf": []byte(`<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Covered</dc:title></metadata>
  <manifest><item id="cover" href="cover.png" media-type="image/png" properties="cover-image"/></manifest>
</package>`),
		"cover.png": cover,
	}
	for name, body := range files {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRouter_BookCover(t *testing.T) {
	s := setupTestServer(t)
	cover := []byte("\x89PNG\r\n cover bytes")

	w := s.uploadBook(t, "covered.epub", coveredEPUB(t, cover), nil, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decodeJSON(t, w)["id"].(string)

	w = s.do(http.MethodGet, "/api/books/"+id+"/cover", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/books/"+id+"/cover", nil, asDevice("kobo"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, cover, w.Body.Bytes())

	w = s.uploadBook(t, "plain.txt", []byte("no cover here"), nil, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code)
	plainID, _ := decodeJSON(t, w)["id"].(string)

	w = s.do(http.MethodGet, "/api/books/"+plainID+"/cover", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "cover")

	w = s.do(http.MethodGet, "/api/books/missing/cover", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Deleting the book takes the cover with it.
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/books/"+id, nil, asAdmin).Code)
	w = s.do(http.MethodGet, "/api/books/"+id+"/cover", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_UploadBookValidation(t *testing.T) {
	s := setupTestServer(t)

	w := s.uploadBook(t, "notes.docx", []byte("data"), nil, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.uploadBook(t, "empty.epub", []byte{}, nil, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.uploadBook(t, "book.txt", []byte("data"), nil, asDevice("kobo"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/books", nil, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_UploadBookFormOverridesMetadata(t *testing.T) {
	s := setupTestServer(t)

	w := s.uploadBook(t, "scan_0001.pdf", []byte("%PDF-1.4 fake"), map[string]string{
		"title":  "Collected Letters",
		"author": "Anonymous",
	}, asAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	book := decodeJSON(t, w)
	assert.Equal(t, "Collected Letters", book["title"])
	assert.Equal(t, "Anonymous", book["author"])
}

func TestRouter_ListBooksRejectsBadPage(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/api/books?page=abc", nil, asDevice("kobo"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
