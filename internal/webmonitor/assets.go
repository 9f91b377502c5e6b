package webmonitor

import (
	"net/http"
	"os"
	"path/filepath"
)

// assetHandler serves the static frontend directory mounted at /ui/.
type assetHandler struct {
	frontendDir string
}

func newAssetHandler(frontendDir string) *assetHandler {
	return &assetHandler{frontendDir: frontendDir}
}

func (h *assetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := filepath.Clean("/" + r.URL.Path)
	if rel == "/" {
		rel = "/index.html"
	}
	path := filepath.Join(h.frontendDir, rel)
	if !fileExists(path) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
