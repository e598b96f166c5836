package api

import (
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// shellAssets is the fixed precache list: request path → file under the
// web root. Only these paths are ever served; everything else misses.
var shellAssets = map[string]string{
	"/":                  "index.html",
	"/static/app.js":     filepath.Join("static", "app.js"),
	"/static/index.html": filepath.Join("static", "index.html"),
	"/service-worker.js": filepath.Join("static", "service-worker.js"),
}

// Shell serves the static application shell cache-first: assets are read
// into a named in-memory cache at startup and on first request, then
// served from memory. Cached bytes live for the process lifetime; there
// is no invalidation.
type Shell struct {
	root string
	log  *slog.Logger

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewShell constructs a Shell over the given web root and pre-caches
// whichever shell assets exist on disk.
func NewShell(root string, log *slog.Logger) *Shell {
	s := &Shell{
		root:  root,
		log:   log,
		cache: make(map[string][]byte),
	}

	for path, rel := range shellAssets {
		b, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			log.Warn("shell asset not pre-cached", "path", path, "err", err)
			continue
		}
		s.cache[path] = b
	}

	return s
}

func (s *Shell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel, ok := shellAssets[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.mu.RLock()
	b, hit := s.cache[r.URL.Path]
	s.mu.RUnlock()

	if !hit {
		var err error
		b, err = os.ReadFile(filepath.Join(s.root, rel))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		s.mu.Lock()
		s.cache[r.URL.Path] = b
		s.mu.Unlock()
	}

	if ct := mime.TypeByExtension(filepath.Ext(rel)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	_, _ = w.Write(b)
}
