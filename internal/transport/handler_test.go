package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/config"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/geometry"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/matcher"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/observer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/repository"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/service"
	"github.com/Hyllesen/scamvenge-telegram-bot/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDetector struct{ set analyzer.OcrResultSet }

func (d *stubDetector) Detect(ctx context.Context, image []byte) (analyzer.OcrResultSet, error) {
	return d.set, nil
}
func (d *stubDetector) Name() string { return "stub" }
func (d *stubDetector) Close() error { return nil }

type stubSource struct{ data []byte }

func (s *stubSource) Fetch(ctx context.Context, ref string) ([]byte, error) { return s.data, nil }
func (s *stubSource) Accepts(ref string) bool                               { return true }
func (s *stubSource) Name() string                                          { return "stub" }

type testServer struct {
	handler http.Handler
	store   repository.StoreRepository
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		OCREngine:          config.EngineTesseract,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	store, err := repository.Open(repository.Options{
		Driver:         repository.DriverSQLite,
		DSN:            filepath.Join(t.TempDir(), "stores.db"),
		OpTimeout:      5 * time.Second,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(metrics)

	svc, err := service.NewDedupService(service.Dependencies{
		Analyzer: analyzer.NewScreenshotAnalyzer(analyzer.DefaultOptions()),
		Matcher:  matcher.New(matcher.DefaultOptions()),
		Store:    store,
		Detector: &stubDetector{set: screenshot("Sneaker Hub")},
		Source:   &stubSource{data: pngBytes(t)},
		Events:   events,
		Metrics:  metrics,
	}, service.DefaultOptions())
	require.NoError(t, err)

	return &testServer{handler: NewHandler(svc, cfg), store: store}
}

func screenshot(name string) analyzer.OcrResultSet {
	return analyzer.OcrResultSet{
		{Text: "Following", BoundingPolygon: geometry.FromRect(0, 0, 100, 20), Confidence: 0.9},
		{Text: name, BoundingPolygon: geometry.FromRect(0, 30, 300, 110), Confidence: 0.8},
	}
}

func detectionBody(ref, name string) string {
	req := models.DetectionRequest{Reference: ref}
	for _, d := range screenshot(name) {
		req.Detections = append(req.Detections, models.Detection{
			Text: d.Text, BoundingPolygon: d.BoundingPolygon, Confidence: d.Confidence,
		})
	}
	b, _ := json.Marshal(req)
	return string(b)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func (s *testServer) do(method, path, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) postJSON(path, body string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, path, "application/json", bytes.NewBufferString(body))
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "available", resp.Status)
	assert.Equal(t, "tesseract", resp.OCREngine)
}

func TestRegisterAndEvaluate(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.postJSON("/v1/detections/register", detectionBody("msg-1", "Nike Store"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "Nike Store", first.StoreName)
	assert.False(t, first.IsDuplicate)
	require.NotNil(t, first.Record)
	assert.Equal(t, "Nike Store", first.Record.Name)

	w = s.postJSON("/v1/detections/register", detectionBody("msg-2", "Nike Stor"))
	require.Equal(t, http.StatusOK, w.Code)
	var second models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, "Nike Store", second.MatchedName)
	assert.Nil(t, second.Record)

	w = s.postJSON("/v1/detections/evaluate", detectionBody("msg-3", "Puma"))
	require.Equal(t, http.StatusOK, w.Code)
	var third models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &third))
	assert.False(t, third.IsDuplicate)

	names, err := s.store.ListNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Nike Store"}, names)
}

func TestRegister_SkippedScreenshots(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{
			name:   "no qualifying keyword",
			body:   `{"reference":"m1","detections":[{"text":"Nike Store","bounding_polygon":[[0,0],[100,0],[100,40],[0,40]],"confidence":0.9}]}`,
			reason: "invalid_image",
		},
		{name: "empty detections", body: `{"reference":"m2","detections":[]}`, reason: "invalid_image"},
		{
			name:   "only keywords",
			body:   `{"reference":"m3","detections":[{"text":"Following","bounding_polygon":[[0,0],[100,0],[100,40],[0,40]],"confidence":0.9}]}`,
			reason: "no_candidate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.postJSON("/v1/detections/register", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

			var resp models.SkippedResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.Skipped)
			assert.Equal(t, tt.reason, resp.Reason)
		})
	}
}

func TestRegister_BadRequests(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"detections":`},
		{"three-coordinate point", `{"detections":[{"text":"Nike","bounding_polygon":[[0,0,1],[1,1],[2,2]],"confidence":0.5}]}`},
		{"confidence out of range", `{"detections":[{"text":"Nike","bounding_polygon":[[0,0],[9,0],[9,9]],"confidence":7}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.postJSON("/v1/detections/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestRegister_MalformedPolygonDropsOnlyThatDetection(t *testing.T) {
	s := newTestServer(t, testConfig())

	body := `{"reference":"m1","detections":[
		{"text":"Following","bounding_polygon":[[0,0],[100,0],[100,20],[0,20]],"confidence":0.9},
		{"text":"Huge Banner","bounding_polygon":[[0,0],[900,900]],"confidence":0.9},
		{"text":"Nike Store","bounding_polygon":[[0,30],[300,30],[300,110],[0,110]],"confidence":0.8}
	]}`
	w := s.postJSON("/v1/detections/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Nike Store", resp.StoreName)
}

func TestRegister_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestBodySize = 256
	s := newTestServer(t, cfg)

	body := detectionBody("m", strings.Repeat("N", 400))
	w := s.postJSON("/v1/detections/register", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func TestRegister_PersistenceFailure(t *testing.T) {
	s := newTestServer(t, testConfig())
	require.NoError(t, s.store.Close())

	w := s.postJSON("/v1/detections/register", detectionBody("msg-1", "Nike Store"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "msg-1", resp.Reference)
}

func TestUploadScreenshot(t *testing.T) {
	s := newTestServer(t, testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "shot.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("reference", "msg-7"))
	require.NoError(t, mw.Close())

	w := s.do(http.MethodPost, "/v1/screenshots", mw.FormDataContentType(), &body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Sneaker Hub", resp.StoreName)
	assert.Equal(t, "msg-7", resp.Reference)
}

func TestUploadScreenshot_MissingImage(t *testing.T) {
	s := newTestServer(t, testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("reference", "msg-7"))
	require.NoError(t, mw.Close())

	w := s.do(http.MethodPost, "/v1/screenshots", mw.FormDataContentType(), &body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetchScreenshot(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.postJSON("/v1/screenshots/fetch", `{"url":"ftp://example.com/a.png"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postJSON("/v1/screenshots/fetch", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postJSON("/v1/screenshots/fetch", `{"url":"https://example.com/a.png","reference":"msg-8"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Sneaker Hub", resp.StoreName)
	assert.Equal(t, "msg-8", resp.Reference)
}

func TestListStoresAndStats(t *testing.T) {
	s := newTestServer(t, testConfig())
	for i, name := range []string{"Nike Store", "Adidas", "Puma Outlet"} {
		w := s.postJSON("/v1/detections/register", detectionBody(string(rune('a'+i)), name))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(http.MethodGet, "/v1/stores?limit=2&offset=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.StoresResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Stores, 2)
	assert.Equal(t, "Adidas", page.Stores[0].Name)
	assert.Equal(t, "Puma Outlet", page.Stores[1].Name)

	for _, q := range []string{"limit=0", "limit=abc", "offset=-1", "limit=100000"} {
		w := s.do(http.MethodGet, "/v1/stores?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w = s.do(http.MethodGet, "/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st service.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, int64(3), st.TotalStores)
	require.NotNil(t, st.Pipeline)
	assert.Equal(t, int64(3), st.Pipeline.Registered)
}
