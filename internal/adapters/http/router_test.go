package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Mosaic/internal/app"
	"github.com/dkeye/Mosaic/internal/app/orch"
	"github.com/dkeye/Mosaic/internal/config"
	"github.com/dkeye/Mosaic/internal/core/coretest"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>mosaic</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: dir,
		Secret:     "test-secret",
		Signal:     config.SignalConfig{PingPeriod: time.Second, WriteWait: time.Second, SendBuffer: 8},
	}
	return SetupRouter(context.Background(), cfg, orch.New(&coretest.Backend{}, app.SimplePolicy{}))
}

func TestRootServesIndex(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodGet, "/", nil))

	assert.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mosaic")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "MosaicSessions", cookies[0].Name)
}

func TestClientTokenIsStable(t *testing.T) {
	r := newRouter(t)
	var seen []string
	r.GET("/token", func(c *gin.Context) {
		seen = append(seen, c.GetString("client_token"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodGet, "/token", nil))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(stdhttp.MethodGet, "/token", nil)
	req.AddCookie(cookies[0])
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.Equal(t, seen[0], seen[1])
}

func TestStaticFallback(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodGet, "/app.js", nil))
	assert.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodGet, "/missing.js", nil))
	assert.Equal(t, stdhttp.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))

	assert.Equal(t, stdhttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodGet, "/metrics", nil))

	assert.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mosaic_sessions_active")
}

func TestRootUpgradesWebSocket(t *testing.T) {
	srv := httptest.NewServer(newRouter(t))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]any{"id": "presenter", "sdpOffers": []string{"o"}}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	var resp struct {
		ID         string   `json:"id"`
		Response   string   `json:"response"`
		SDPAnswers []string `json:"sdpAnswers"`
	}
	require.NoError(t, ws.ReadJSON(&resp))
	assert.Equal(t, "presenterResponse", resp.ID)
	assert.Equal(t, "accepted", resp.Response)
	assert.Equal(t, []string{"answer:o"}, resp.SDPAnswers)
}
