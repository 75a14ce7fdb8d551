package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

func isAPIPath(p string) bool {
	for _, prefix := range []string{"/api/", "/admin/api/"} {
		if p == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// resolveStaticFile maps a request path onto the exported site: the file
// itself, a directory index, or the ".html" page of the same name.
func resolveStaticFile(dir, requestPath string) (string, bool) {
	clean := path.Clean("/" + requestPath)
	base := filepath.Join(dir, filepath.FromSlash(clean))

	candidates := []string{base, filepath.Join(base, "index.html")}
	if clean != "/" {
		candidates = append(candidates, base+".html")
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

/*
NoRoute handler
- serves the exported storefront site for GET/HEAD
- unknown API paths answer JSON 404
*/
func StaticSite(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "NoRoute"

		p := c.Request.URL.Path
		if isAPIPath(p) || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			respondWithError(c, http.StatusNotFound, route, "not found")
			return
		}

		if file, ok := resolveStaticFile(dir, p); ok {
			c.File(file)
			return
		}
		if file, ok := resolveStaticFile(dir, "/"); ok {
			c.File(file)
			return
		}
		respondWithError(c, http.StatusNotFound, route, "not found")
	}
}

/*
GET /healthz
*/
func Health(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /healthz"

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			logger.WithError(err).WithField("route", route).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
