package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/mentor/internal/metrics"
	"github.com/kalambet/mentor/internal/pipeline"
	"github.com/kalambet/mentor/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

const defaultListLimit = 50

// ServiceName is reported by the health endpoint and the MCP server.
const ServiceName = "mentor"

// Generator creates a roadmap from a learning goal.
type Generator interface {
	Generate(ctx context.Context, query string) (storage.Roadmap, error)
}

// RoadmapStore is the read and delete side of roadmap storage.
type RoadmapStore interface {
	GetRoadmap(id int64) (storage.Roadmap, error)
	ListRoadmaps(skip, limit int) ([]storage.RoadmapSummary, int, error)
	DeleteRoadmap(id int64) error
}

// Deps holds what the HTTP and MCP surfaces need.
type Deps struct {
	Generator Generator
	Store     RoadmapStore
	Metrics   *metrics.Recorder // optional
}

type createRoadmapRequest struct {
	Query *string `json:"query"`
}

type roadmapList struct {
	Roadmaps []storage.RoadmapSummary `json:"roadmaps"`
	Total    int                      `json:"total"`
}

// NewHandler returns the REST API router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Get("/", handleHealth)
	r.Get("/health", handleHealth)
	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/api/roadmaps", func(r chi.Router) {
		r.Post("/", handleCreateRoadmap(deps))
		r.Get("/", handleListRoadmaps(deps))
		r.Get("/{id}", handleGetRoadmap(deps))
		r.Delete("/{id}", handleDeleteRoadmap(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

func handleCreateRoadmap(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createRoadmapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Query == nil {
			httpError(w, http.StatusUnprocessableEntity, "query: field required")
			return
		}

		rm, err := deps.Generator.Generate(r.Context(), *req.Query)
		if err != nil {
			var ve *pipeline.ValidationError
			if errors.As(err, &ve) {
				httpError(w, http.StatusUnprocessableEntity, "%s", ve.Error())
				return
			}
			slog.Error("roadmap generation failed", "error", err, "request_id", RequestIDFrom(r.Context()))
			httpError(w, http.StatusInternalServerError, "Failed to generate roadmap: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, rm)
	}
}

func handleListRoadmaps(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip := parseIntParam(r, "skip", 0, 0, 0)
		limit := parseIntParam(r, "limit", defaultListLimit, 1, 0)

		items, total, err := deps.Store.ListRoadmaps(skip, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list roadmaps: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, roadmapList{Roadmaps: items, Total: total})
	}
}

func handleGetRoadmap(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			httpError(w, http.StatusNotFound, "Roadmap not found")
			return
		}

		rm, err := deps.Store.GetRoadmap(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Roadmap not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get roadmap: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, rm)
	}
}

func handleDeleteRoadmap(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			httpError(w, http.StatusNotFound, "Roadmap not found")
			return
		}

		err := deps.Store.DeleteRoadmap(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Roadmap not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to delete roadmap: %v", err)
			return
		}
		deps.Metrics.RecordDeleted()
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseID reads the {id} route parameter. Non-numeric ids cannot name a
// stored roadmap.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseIntParam reads a query parameter, falling back to defaultVal when it
// is absent, malformed or below minVal, and clamping it to maxVal when maxVal > 0.
func parseIntParam(r *http.Request, key string, defaultVal, minVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < minVal {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

// httpError writes a {"detail": ...} error body.
func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"detail": fmt.Sprintf(format, args...)})
}
