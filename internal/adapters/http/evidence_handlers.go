package httpadapter

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

func (rt *Router) documentCollection(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		docs, err := rt.evidence.List(r.Context(), user.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	case http.MethodPost:
		file, fileHeader, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "multipart field 'file' is required")
			return
		}
		defer file.Close()

		doc, err := rt.evidence.Upload(r.Context(), user.ID, fileHeader.Filename, fileHeader.Size, file)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordEvidenceUpload(serviceName, doc.Size)
		}
		writeJSON(w, http.StatusCreated, doc)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// documentItem dispatches /v1/documents/{id}[/download].
func (rt *Router) documentItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	docID, sub, _ := strings.Cut(rest, "/")
	if docID == "" {
		writeJSONError(w, http.StatusBadRequest, "document id is required")
		return
	}
	user := userFromContext(r.Context())

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		if err := rt.evidence.Delete(r.Context(), user.ID, docID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case sub == "download" && r.Method == http.MethodGet:
		rt.downloadDocument(w, r, docID)
	case sub == "" || sub == "download":
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeJSONError(w, http.StatusNotFound, "unknown document resource")
	}
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request, docID string) {
	user := userFromContext(r.Context())

	doc, body, err := rt.evidence.Download(r.Context(), user.ID, docID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.OriginalName))
	_, _ = io.Copy(w, body)
}
