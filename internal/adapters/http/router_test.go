package httpadapter

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/intel-workbench/internal/config"
	"github.com/avolkov/intel-workbench/internal/core/usecase"
	memoryqueue "github.com/avolkov/intel-workbench/internal/infrastructure/queue/memory"
	"github.com/avolkov/intel-workbench/internal/infrastructure/repository/jsonfile"
	"github.com/avolkov/intel-workbench/internal/infrastructure/storage/localfs"
)

type testEnv struct {
	handler    http.Handler
	storageDir string
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	store, err := jsonfile.Open(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	storageDir := t.TempDir()
	storage, err := localfs.New(storageDir)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	queue := memoryqueue.New(time.Millisecond)
	locks := usecase.NewUserLocks()

	auth := usecase.NewAuthUseCase(store, store, time.Hour)
	tasks := usecase.NewTaskRegistryUseCase(store, store, locks)
	brief := usecase.NewBriefUseCase(store, store, store, locks)
	evidence := usecase.NewEvidenceUseCase(store, storage, queue, store, locks)

	return &testEnv{
		handler:    NewRouter(cfg, auth, tasks, brief, evidence, nil).Handler(),
		storageDir: storageDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	return res
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "hunter2",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if out.Token == "" {
		t.Fatalf("expected a session token")
	}
	return out.Token
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzReportsStatusAndTime(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	res := env.do(t, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["status"] != "ok" {
		t.Fatalf("unexpected status %v", body["status"])
	}
	if body["time"] == nil || body["time"] == "" {
		t.Fatalf("expected a time field, got %v", body["time"])
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.login(t, "ana@example.com")

	res := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "wrong",
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginMissingPasswordIsBadRequest(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	res := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ana@example.com",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	res := env.do(t, http.MethodGet, "/v1/tasks", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	res = env.do(t, http.MethodGet, "/v1/tasks", "bogus-token", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", res.Code)
	}
}

func TestTokenAcceptedAsQueryParameter(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := env.do(t, http.MethodGet, "/v1/tasks?token="+token, "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", res.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := env.do(t, http.MethodPost, "/v1/tasks", token, map[string]string{})
	if res.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d: %s", res.Code, res.Body.String())
	}
	created := decodeBody(t, res)
	taskID, _ := created["id"].(string)
	if taskID == "" {
		t.Fatalf("expected task id in %v", created)
	}
	if created["title"] != "Untitled Task" {
		t.Fatalf("expected default title, got %v", created["title"])
	}

	// Whitespace rename is a no-op.
	res = env.do(t, http.MethodPatch, "/v1/tasks/"+taskID, token, map[string]string{"title": "   "})
	if res.Code != http.StatusOK {
		t.Fatalf("rename expected 200, got %d", res.Code)
	}
	if decodeBody(t, res)["title"] != "Untitled Task" {
		t.Fatalf("whitespace rename should keep the title")
	}

	res = env.do(t, http.MethodPatch, "/v1/tasks/"+taskID, token, map[string]string{"title": "Acme Expansion"})
	if res.Code != http.StatusOK {
		t.Fatalf("rename expected 200, got %d", res.Code)
	}
	if decodeBody(t, res)["title"] != "Acme Expansion" {
		t.Fatalf("rename did not stick")
	}

	res = env.do(t, http.MethodDelete, "/v1/tasks/"+taskID, token, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", res.Code)
	}
	res = env.do(t, http.MethodGet, "/v1/tasks/"+taskID, token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.Code)
	}
}

func TestTasksAreOwnerScoped(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	owner := env.login(t, "ana@example.com")
	intruder := env.login(t, "bob@example.com")

	res := env.do(t, http.MethodPost, "/v1/tasks", owner, map[string]string{"title": "Private"})
	taskID := decodeBody(t, res)["id"].(string)

	res = env.do(t, http.MethodGet, "/v1/tasks/"+taskID, intruder, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign task, got %d", res.Code)
	}
}

func TestInvokeBriefAppendsTurn(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := env.do(t, http.MethodPost, "/v1/tasks", token, map[string]string{"title": "Acme"})
	taskID := decodeBody(t, res)["id"].(string)

	res = env.do(t, http.MethodPost, "/v1/tasks/"+taskID+"/invoke", token, map[string]string{
		"prompt": "What changed this quarter?",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("invoke expected 200, got %d: %s", res.Code, res.Body.String())
	}
	turn := decodeBody(t, res)
	if turn["message"] == nil || turn["report"] == nil {
		t.Fatalf("expected message and report in %v", turn)
	}
	insights, ok := turn["insights"].([]any)
	if !ok || len(insights) != 3 {
		t.Fatalf("expected three insights, got %v", turn["insights"])
	}

	res = env.do(t, http.MethodPost, "/v1/tasks/"+taskID+"/invoke", token, map[string]string{"prompt": "   "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("empty prompt expected 400, got %d", res.Code)
	}
}

func TestReplaceReportRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := env.do(t, http.MethodPost, "/v1/tasks", token, map[string]string{"title": "Acme"})
	taskID := decodeBody(t, res)["id"].(string)

	res = env.do(t, http.MethodPut, "/v1/tasks/"+taskID+"/report", token, map[string]any{
		"bogus_field": 1,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("unknown field expected 400, got %d", res.Code)
	}

	res = env.do(t, http.MethodPut, "/v1/tasks/"+taskID+"/report", token, map[string]any{
		"executive_summary": "Rewritten by hand.",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("replace expected 200, got %d: %s", res.Code, res.Body.String())
	}
	report := decodeBody(t, res)
	if report["executive_summary"] != "Rewritten by hand." {
		t.Fatalf("replace did not merge: %v", report["executive_summary"])
	}
}

func TestReplaceReportRoundTripsFetchedReport(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := env.do(t, http.MethodPost, "/v1/tasks", token, map[string]string{"title": "Acme"})
	taskID := decodeBody(t, res)["id"].(string)

	res = env.do(t, http.MethodGet, "/v1/tasks/"+taskID, token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get expected 200, got %d", res.Code)
	}
	fetched := decodeBody(t, res)["report"]
	previousStamp := fetched.(map[string]any)["last_updated"].(string)

	// Putting a fetched report back unchanged is the canonical use of
	// the endpoint and must not trip the strict decoder.
	res = env.do(t, http.MethodPut, "/v1/tasks/"+taskID+"/report", token, fetched)
	if res.Code != http.StatusOK {
		t.Fatalf("round-trip replace expected 200, got %d: %s", res.Code, res.Body.String())
	}
	merged := decodeBody(t, res)
	if merged["last_updated"] == previousStamp {
		t.Fatalf("last_updated must be refreshed by the server")
	}
}

func TestReportExports(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := env.do(t, http.MethodPost, "/v1/tasks", token, map[string]string{"title": "Acme"})
	taskID := decodeBody(t, res)["id"].(string)

	res = env.do(t, http.MethodGet, "/v1/tasks/"+taskID+"/report/markdown", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("markdown export expected 200, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Body.String(), "# Acme") {
		t.Fatalf("unexpected markdown start: %q", res.Body.String())
	}

	res = env.do(t, http.MethodGet, "/v1/tasks/"+taskID+"/report/pdf", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("pdf export expected 200, got %d", res.Code)
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a pdf payload")
	}

	res = env.do(t, http.MethodGet, "/v1/tasks/"+taskID+"/report/xlsx", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("xlsx export expected 200, got %d", res.Code)
	}

	res = env.do(t, http.MethodGet, "/v1/tasks/"+taskID+"/report/docx", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("unknown format expected 404, got %d", res.Code)
	}
}

func uploadFile(t *testing.T, env *testEnv, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	return res
}

func TestEvidenceUploadDownloadDelete(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := uploadFile(t, env, token, "notes.txt", "quarterly findings")
	if res.Code != http.StatusCreated {
		t.Fatalf("upload expected 201, got %d: %s", res.Code, res.Body.String())
	}
	doc := decodeBody(t, res)
	docID := doc["id"].(string)
	if doc["status"] != "processing" {
		t.Fatalf("expected processing status, got %v", doc["status"])
	}

	res = env.do(t, http.MethodGet, "/v1/documents/"+docID+"/download", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("download expected 200, got %d", res.Code)
	}
	if res.Body.String() != "quarterly findings" {
		t.Fatalf("unexpected download body %q", res.Body.String())
	}

	res = env.do(t, http.MethodDelete, "/v1/documents/"+docID, token, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", res.Code)
	}
	res = env.do(t, http.MethodGet, "/v1/documents/"+docID+"/download", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.Code)
	}
}

func TestDownloadMissingBackingFileIsGone(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	res := uploadFile(t, env, token, "notes.txt", "quarterly findings")
	doc := decodeBody(t, res)
	docID := doc["id"].(string)
	storedName := doc["stored_name"].(string)

	if err := os.Remove(filepath.Join(env.storageDir, storedName)); err != nil {
		t.Fatalf("remove backing file: %v", err)
	}

	res = env.do(t, http.MethodGet, "/v1/documents/"+docID+"/download", token, nil)
	if res.Code != http.StatusGone {
		t.Fatalf("expected 410 for missing backing file, got %d", res.Code)
	}
}

func TestUploadWithoutMultipartFieldIsBadRequest(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	token := env.login(t, "ana@example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestOpenAPIDocumentIsServed(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	res := env.do(t, http.MethodGet, "/v1/openapi.json", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	doc := decodeBody(t, res)
	if doc["openapi"] == nil {
		t.Fatalf("expected an openapi version field")
	}
}
