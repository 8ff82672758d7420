package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
)

var assetPattern = regexp.MustCompile(`\.[a-zA-Z0-9]+$`)

// spa serves the built single-page app. Existing files are served as-is,
// missing assets 404, and every other path gets index.html and counts as a
// page visit.
func (s *Server) spa() http.Handler {
	root := s.cfg.DistDir
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		file := filepath.Join(root, filepath.FromSlash(clean))

		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			http.ServeFile(w, r, file)
			return
		}

		if assetPattern.MatchString(clean) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}

		index := filepath.Join(root, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.Error(w, "Storefront not built", http.StatusNotFound)
			return
		}

		if s.Shop != nil {
			if err := s.Shop.RecordVisit(r.Context(), s.visitor(r)); err != nil {
				s.log.Warn("Failed to record visit", zap.String("path", clean), zap.Error(err))
			}
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	})
}
