package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/manager"
	"inferd/internal/store"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.ModelRecord
	GetModel(id string) (types.ModelRecord, bool)
	AddModel(ctx context.Context, rec types.ModelRecord, artifact []byte) error
	RemoveModel(id string) error
	Status() types.StatusResponse
	Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error)
	Ready() bool
}

// addModelRequest is the JSON body for PUT /models/{id}. The artifact is
// base64 in ArtifactB64; real deployments pull artifacts out-of-band via the
// download client, this endpoint exists for the management CLI.
type addModelRequest struct {
	DisplayName  string   `json:"display_name,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	ArtifactB64  []byte   `json:"artifact_b64"`
}

// NewMux builds the daemon router.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for local model cache management and batched inference.
// @BasePath        /
func NewMux(svc Service, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(requestLogger(logger))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, ok := svc.GetModel(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "model not found: "+id)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Put("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req addModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.ArtifactB64) == 0 {
			writeJSONError(w, http.StatusBadRequest, "artifact_b64 is required")
			return
		}
		id := chi.URLParam(r, "id")
		rec := types.ModelRecord{ID: id, DisplayName: req.DisplayName, Capabilities: req.Capabilities}
		if err := svc.AddModel(r.Context(), rec, req.ArtifactB64); err != nil {
			writeServiceError(w, err)
			return
		}
		stored, _ := svc.GetModel(id)
		writeJSON(w, http.StatusCreated, stored)
	})

	r.Delete("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveModel(chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/infer", func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.InferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Input) == "" {
			writeJSONError(w, http.StatusBadRequest, "input is required")
			return
		}
		// Join server base context with request context so shutdown stops
		// waiting too (the dispatched batch itself runs to completion).
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if sec := inferTimeout; sec > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(sec)*time.Second)
			defer tcancel()
		}
		resp, err := svc.Infer(ctx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	MountSwagger(r)
	return r
}

func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

// writeServiceError maps well-known component errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case store.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case store.IsQuotaExceeded(err):
		writeJSONError(w, http.StatusInsufficientStorage, err.Error())
	case manager.IsLoadFailed(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case engine.IsUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusRequestTimeout, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// requestLogger emits one structured line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			ev := logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sr.status).
				Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg("http request")
		})
	}
}
