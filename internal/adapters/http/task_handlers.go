package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/export/markdown"
	exportpdf "github.com/avolkov/intel-workbench/internal/export/pdf"
	"github.com/avolkov/intel-workbench/internal/export/xlsx"
)

func (rt *Router) taskCollection(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		summaries, err := rt.tasks.List(r.Context(), user.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
		}
		task, err := rt.tasks.Create(r.Context(), user.ID, req.Title)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// taskItem dispatches /v1/tasks/{id}[/invoke|/report[/format]].
func (rt *Router) taskItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
	taskID, sub, _ := strings.Cut(rest, "/")
	if taskID == "" {
		writeJSONError(w, http.StatusBadRequest, "task id is required")
		return
	}

	switch {
	case sub == "":
		rt.taskByID(w, r, taskID)
	case sub == "invoke":
		rt.invokeBrief(w, r, taskID)
	case sub == "report":
		rt.replaceReport(w, r, taskID)
	case strings.HasPrefix(sub, "report/"):
		rt.exportReport(w, r, taskID, strings.TrimPrefix(sub, "report/"))
	default:
		writeJSONError(w, http.StatusNotFound, "unknown task resource")
	}
}

func (rt *Router) taskByID(w http.ResponseWriter, r *http.Request, taskID string) {
	user := userFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		task, err := rt.tasks.Get(r.Context(), user.ID, taskID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodPatch:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		summary, err := rt.tasks.Rename(r.Context(), user.ID, taskID, req.Title)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	case http.MethodDelete:
		if err := rt.tasks.Delete(r.Context(), user.ID, taskID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) invokeBrief(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := userFromContext(r.Context())

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	turn, err := rt.brief.Invoke(r.Context(), user.ID, taskID, req.Prompt)
	if rt.metrics != nil {
		sections := 0
		if turn != nil {
			sections = len(turn.Report.Sections)
		}
		rt.metrics.RecordBriefInvocation(serviceName, err, sections, time.Since(start))
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// replaceReport decodes strictly: unknown fields are a client error,
// not silently persisted.
func (rt *Router) replaceReport(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPut {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := userFromContext(r.Context())

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var patch domain.ReportPatch
	if err := decoder.Decode(&patch); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid report payload: %v", err))
		return
	}

	report, err := rt.brief.ReplaceReport(r.Context(), user.ID, taskID, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request, taskID, format string) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := userFromContext(r.Context())

	task, err := rt.tasks.Get(r.Context(), user.ID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	switch format {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(task.Title, "md"))
		_, _ = w.Write([]byte(markdown.Encode(task.Report)))
	case "pdf":
		payload, err := exportpdf.Encode(task.Report)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "pdf rendering failed")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", attachment(task.Title, "pdf"))
		_, _ = w.Write(payload)
	case "xlsx":
		payload, err := xlsx.Encode(task.Report)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "xlsx rendering failed")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", attachment(task.Title, "xlsx"))
		_, _ = w.Write(payload)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown export format")
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordReportExport(serviceName, format)
	}
}

func attachment(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, title)
	if name == "" {
		name = "report"
	}
	return fmt.Sprintf("attachment; filename=%q", name+"."+ext)
}
