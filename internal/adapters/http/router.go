// Package httpadapter exposes the workbench over HTTP/JSON.
package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/intel-workbench/internal/config"
	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/core/ports"
	"github.com/avolkov/intel-workbench/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg      config.Config
	auth     ports.Authenticator
	tasks    ports.TaskRegistry
	brief    ports.BriefSynthesizer
	evidence ports.EvidenceService
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	auth ports.Authenticator,
	tasks ports.TaskRegistry,
	brief ports.BriefSynthesizer,
	evidence ports.EvidenceService,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		auth:     auth,
		tasks:    tasks,
		brief:    brief,
		evidence: evidence,
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/auth/login", rt.login)
	mux.HandleFunc("/v1/openapi.json", rt.serveOpenAPI)
	mux.HandleFunc("/v1/tasks", rt.withUser(rt.taskCollection))
	mux.HandleFunc("/v1/tasks/", rt.withUser(rt.taskItem))
	mux.HandleFunc("/v1/documents", rt.withUser(rt.documentCollection))
	mux.HandleFunc("/v1/documents/", rt.withUser(rt.documentItem))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.requestValidationMiddleware(handler)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := rt.auth.Login(r.Context(), req.Email, req.Password, req.Name)
	if rt.metrics != nil {
		rt.metrics.RecordLogin(serviceName, err)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type userContextKey struct{}

func userFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userContextKey{}).(*domain.User)
	return user
}

// withUser resolves the bearer token (Authorization header or ?token=)
// before the wrapped handler runs.
func (rt *Router) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("Authorization"))
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer"))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}

		user, err := rt.auth.Resolve(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		next(w, r.WithContext(ctx))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeJSONError(w, mapErrorToHTTPStatus(err), err.Error())
}
