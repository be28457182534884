package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mnsd/internal/mns"
	"mnsd/internal/registry"
	"mnsd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Ready() bool
	Instances() []int
	RegisterCallback(instanceID int, l registry.Listener)
	UnregisterCallback(instanceID int)
	UnregisterListener(instanceID int, l registry.Listener)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyHandler(svc))
	r.Get("/status", statusHandler(svc))
	r.Post("/instances/{id}", registerHandler(svc))
	r.Delete("/instances/{id}", unregisterHandler(svc))
	r.Get("/instances/{id}/ws", streamHandler(svc))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// readyHandler godoc
// @Summary  Readiness probe
// @Success  200 {string} string "ready"
// @Failure  503 {string} string "not listening"
// @Router   /readyz [get]
func readyHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not listening"))
	}
}

// statusHandler godoc
// @Summary  Registered instances and acceptor state
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// registerHandler godoc
// @Summary  Register a logging listener for a MAS instance
// @Produce  json
// @Param    id path int true "MAS instance id (0-255)"
// @Success  200 {object} types.RegisterResponse
// @Failure  400 {object} types.ErrorResponse
// @Router   /instances/{id} [post]
func registerHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := instanceParam(w, r)
		if !ok {
			return
		}
		svc.RegisterCallback(id, mns.NewLogListener(id, *logger()))
		writeJSON(w, http.StatusOK, types.RegisterResponse{InstanceID: id, Instances: svc.Instances()})
	}
}

// unregisterHandler godoc
// @Summary  Unregister a MAS instance
// @Param    id path int true "MAS instance id (0-255)"
// @Success  204
// @Failure  400 {object} types.ErrorResponse
// @Router   /instances/{id} [delete]
func unregisterHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := instanceParam(w, r)
		if !ok {
			return
		}
		svc.UnregisterCallback(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// instanceParam parses the {id} path parameter and writes a 400 when it is
// not a valid MAS instance id.
func instanceParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 || id > 0xFF {
		writeJSONError(w, http.StatusBadRequest, errInvalidInstance.Error())
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Error().Err(err).Msg("encode response")
	}
}
