// Package api exposes the HTTP surface around the collaboration core:
// health, stats, and the execution and AI proxy endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Gooichand/JustCoding-ECWoC-26/internal/ai"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/exec"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/ratelimit"
)

// HubStats is the read-only view of the hub the stats endpoint needs.
type HubStats interface {
	ClientCount() int
	RoomCount() int
	ActiveRooms() []string
}

type API struct {
	hub      HubStats
	exec     *exec.Client
	ai       *ai.Client
	limiters *ratelimit.PerKey
	validate *validator.Validate
	log      *slog.Logger
}

func New(hub HubStats, execClient *exec.Client, aiClient *ai.Client, limiters *ratelimit.PerKey, log *slog.Logger) *API {
	return &API{
		hub:      hub,
		exec:     execClient,
		ai:       aiClient,
		limiters: limiters,
		validate: validator.New(),
		log:      log,
	}
}

// Routes mounts all non-WebSocket endpoints.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.HealthHandler)
	r.Get("/api/stats", a.StatsHandler)
	r.Post("/compile", a.CompileHandler)
	r.Post("/api/ai/explain", a.ExplainHandler)
	r.Post("/api/ai/debug", a.DebugHandler)
	return r
}

func (a *API) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active_clients": a.hub.ClientCount(),
		"room_count":     a.hub.RoomCount(),
		"active_rooms":   a.hub.ActiveRooms(),
	})
}

func (a *API) CompileHandler(w http.ResponseWriter, r *http.Request) {
	if a.limiters != nil && !a.limiters.Get(remoteHost(r)).Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		return
	}

	var req exec.Request
	if !a.decodeBody(w, r, &req) {
		return
	}

	result, err := a.exec.Run(r.Context(), req)
	switch {
	case errors.Is(err, exec.ErrUnsupportedLanguage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported language"})
	case err != nil:
		a.log.Error("execution proxy failed", "language", req.Language, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Execution failed",
			"details": err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (a *API) ExplainHandler(w http.ResponseWriter, r *http.Request) {
	var req ai.ExplainRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	a.answer(w, r, func() (ai.Answer, error) { return a.ai.Explain(r.Context(), req) })
}

func (a *API) DebugHandler(w http.ResponseWriter, r *http.Request) {
	var req ai.DebugRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	a.answer(w, r, func() (ai.Answer, error) { return a.ai.Debug(r.Context(), req) })
}

func (a *API) answer(w http.ResponseWriter, _ *http.Request, call func() (ai.Answer, error)) {
	result, err := call()
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AI service not configured"})
	case err != nil:
		a.log.Error("ai proxy failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "AI request failed"})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// decodeBody parses and validates a JSON request body, replying 400 on failure.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CORS allows the configured front-end origins to call the API from a browser.
func CORS(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	allowAll := false
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		set[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := set[origin]; ok || allowAll {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
