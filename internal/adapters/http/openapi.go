package httpadapter

import (
	"bytes"
	_ "embed"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openapiSource []byte

type apiSpec struct {
	doc    *openapi3.T
	router routers.Router
	json   []byte
}

var (
	specOnce sync.Once
	spec     *apiSpec
)

func loadAPISpec() *apiSpec {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(openapiSource)
		if err != nil {
			slog.Error("openapi_load_failed", "error", err)
			return
		}
		if err := doc.Validate(loader.Context); err != nil {
			slog.Error("openapi_invalid", "error", err)
			return
		}
		specRouter, err := legacy.NewRouter(doc)
		if err != nil {
			slog.Error("openapi_router_failed", "error", err)
			return
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			slog.Error("openapi_marshal_failed", "error", err)
			return
		}
		spec = &apiSpec{doc: doc, router: specRouter, json: raw}
	})
	return spec
}

func (rt *Router) serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s := loadAPISpec()
	if s == nil {
		writeJSONError(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.json)
}

// requestValidationMiddleware checks JSON request bodies against the
// embedded OpenAPI document before the handlers see them. Multipart
// and body-less requests pass through untouched.
func (rt *Router) requestValidationMiddleware(next http.Handler) http.Handler {
	s := loadAPISpec()
	if s == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validatableRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		route, pathParams, err := s.router.FindRoute(r)
		if err != nil {
			// Unknown routes fall through to the mux 404.
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("request does not match the API contract: %v", err))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func validatableRequest(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	contentType := r.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "application/json")
}
