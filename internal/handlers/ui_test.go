package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func writeSiteFile(t *testing.T, dir, name, body string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func TestStaticSiteServesExportedPages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	writeSiteFile(t, dir, "index.html", "home")
	writeSiteFile(t, dir, "about.html", "about")
	writeSiteFile(t, dir, "shop/index.html", "shop")
	writeSiteFile(t, dir, "_next/app.js", "js")

	r := gin.New()
	r.NoRoute(StaticSite(dir))

	cases := map[string]string{
		"/":             "home",
		"/about":        "about",
		"/shop":         "shop",
		"/shop/":        "shop",
		"/_next/app.js": "js",
		"/product/xyz":  "home",
	}
	for p, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, w.Code, p)
		assert.Equal(t, want, w.Body.String(), p)
	}
}

func TestStaticSiteKeepsAPIPathsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	writeSiteFile(t, dir, "index.html", "home")

	r := gin.New()
	r.NoRoute(StaticSite(dir))

	for _, p := range []string{"/api/unknown", "/admin/api/nothing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, p)
		assert.JSONEq(t, `{"error":"not found"}`, w.Body.String(), p)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/about", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ok", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		r := gin.New()
		r.GET("/healthz", Health(mt.DB))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"status":"ok"}`, w.Body.String())
	})

	mt.Run("unavailable", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Message: "unauthorized"}))
		r := gin.New()
		r.GET("/healthz", Health(mt.DB))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(mt, http.StatusServiceUnavailable, w.Code)
	})
}
