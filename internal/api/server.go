// HTTP surface for the dice bowl server.
// Responsibilities:
//   - Router + middleware (request IDs, panic recovery, request logging).
//   - GET /health: liveness plus connection counts.
//   - GET /ws: websocket upgrade for viewers and admins.
//   - Static serving of the built viewer/admin client with SPA fallback,
//     matching the original deployment where the server fronts the bundle.
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server bundles the router and its dependencies.
type Server struct {
	r     *chi.Mux
	stats StatsSource
}

// StatsSource supplies connection counts for the health endpoint.
type StatsSource interface {
	Stats() map[string]int
}

// New constructs the HTTP surface. wsHandler serves the upgrade endpoint;
// staticDir may point at a missing directory, in which case only the API
// routes are mounted.
func New(wsHandler http.HandlerFunc, stats StatsSource, staticDir string) *Server {
	s := &Server{r: chi.NewRouter(), stats: stats}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(requestLogger)

	s.r.Get("/health", s.handleHealth)
	s.r.Get("/ws", wsHandler)

	if staticDir != "" {
		s.mountStatic(staticDir)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"ok": true}
	if s.stats != nil {
		body["connections"] = s.stats.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// mountStatic serves the client bundle. Unknown paths fall back to
// index.html so room-scoped URLs like /?room=HV:123.456 and /admin resolve
// to the single-page client.
func (s *Server) mountStatic(dir string) {
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		log.Warn().Str("dir", dir).Msg("static dir has no index.html, skipping client mount")
		return
	}

	fileServer := http.FileServer(http.Dir(dir))
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}
