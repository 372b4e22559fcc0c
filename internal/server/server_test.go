package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/config"
	"studyrag/internal/models"
	"studyrag/internal/rag"
)

type fakeService struct {
	ingestErr error
	runErr    error
	result    *rag.Result

	uploaded string
	task     string
	req      rag.Request
	deleted  string
}

func (f *fakeService) Ingest(ctx context.Context, filename string, body io.Reader) (*rag.IngestResult, error) {
	data, _ := io.ReadAll(body)
	f.uploaded = filename + ":" + string(data)
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &rag.IngestResult{SessionID: "session_1700000000_abcdef12", Summary: "summary text"}, nil
}

func (f *fakeService) Run(ctx context.Context, task string, req rag.Request) (*rag.Result, error) {
	f.task, f.req = task, req
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.result, nil
}

func (f *fakeService) DeleteSession(ctx context.Context, id string) error {
	f.deleted = id
	return f.runErr
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{GinMode: "test", MaxUploadMB: 1}
}

func do(t *testing.T, h http.Handler, req *http.Request) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/summarize_pdf/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSummarizePDF(t *testing.T) {
	svc := &fakeService{}
	router := NewRouter(svc, testServerConfig())

	code, body := do(t, router, uploadRequest(t, "lecture.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "summary text", body["summary"])
	assert.Equal(t, "session_1700000000_abcdef12", body["session_id"])
	assert.Equal(t, "lecture.pdf:%PDF", svc.uploaded)
}

func TestSummarizePDF_Rejects(t *testing.T) {
	svc := &fakeService{}
	router := NewRouter(svc, testServerConfig())

	code, body := do(t, router, uploadRequest(t, "photo.png", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "unsupported file type")

	code, _ = do(t, router, uploadRequest(t, "big.pdf", bytes.Repeat([]byte("a"), 1<<20+10)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	code, body = do(t, router, jsonRequest(http.MethodPost, "/summarize_pdf/", `{}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "missing file", body["error"])

	svc.ingestErr = fmt.Errorf("%w: no text", models.ErrDocumentParse)
	code, body = do(t, router, uploadRequest(t, "scan.pdf", []byte("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"], "no text")
}

func TestExplainConcept(t *testing.T) {
	svc := &fakeService{result: &rag.Result{Text: "explained"}}
	router := NewRouter(svc, testServerConfig())

	code, body := do(t, router, jsonRequest(http.MethodPost, "/explain_concept/", `{"concept":"entropy","session_id":"s1"}`))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "explained", body["explanation"])
	assert.Equal(t, rag.TaskExplain, svc.task)
	assert.Equal(t, rag.Request{SessionID: "s1", Concept: "entropy"}, svc.req)

	code, _ = do(t, router, jsonRequest(http.MethodPost, "/explain_concept/", `{"session_id":"s1"}`))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTaskRoutes(t *testing.T) {
	payload := &models.VisualizationPayload{Description: "d", Type: "bar_chart", Data: []models.DataPoint{{Label: "a", Value: 1}}}
	tests := []struct {
		path string
		task string
		key  string
	}{
		{"/generate_quiz/", rag.TaskQuiz, "quiz"},
		{"/generate_case_study/", rag.TaskCaseStudy, "caseStudy"},
		{"/generate_visualization/", rag.TaskVisualization, "visualization"},
	}

	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			svc := &fakeService{result: &rag.Result{Text: "body", Visualization: payload}}
			router := NewRouter(svc, testServerConfig())

			code, body := do(t, router, jsonRequest(http.MethodPost, tt.path, `{"session_id":"s9","prompt":"5 questions"}`))
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.task, svc.task)
			assert.Equal(t, rag.Request{SessionID: "s9", Prompt: "5 questions"}, svc.req)
			require.Contains(t, body, tt.key)

			if tt.task == rag.TaskVisualization {
				viz := body["visualization"].(map[string]any)
				assert.Equal(t, "d", viz["description"])
				assert.Equal(t, "bar_chart", viz["type"])
				assert.Len(t, viz["data"], 1)
			} else {
				assert.Equal(t, "body", body[tt.key])
			}
		})
	}
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{models.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: different model", models.ErrEmbeddingMismatch), http.StatusConflict},
		{fmt.Errorf("%w: timeout", models.ErrGeneration), http.StatusBadGateway},
		{models.ErrOutputParse, http.StatusUnprocessableEntity},
		{models.ErrNoStructuredAnswer, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: unknown task", models.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &fakeService{runErr: tt.err}
			router := NewRouter(svc, testServerConfig())

			code, body := do(t, router, jsonRequest(http.MethodPost, "/generate_visualization/", `{"session_id":"s1"}`))
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, body["error"])
			assert.Len(t, body, 1)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	svc := &fakeService{}
	router := NewRouter(svc, testServerConfig())

	code, body := do(t, router, httptest.NewRequest(http.MethodDelete, "/sessions/session_1_abcdef12", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "session_1_abcdef12", body["deleted"])
	assert.Equal(t, "session_1_abcdef12", svc.deleted)

	svc.runErr = models.ErrSessionNotFound
	code, body = do(t, router, httptest.NewRequest(http.MethodDelete, "/sessions/nope", nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, sessionNotFoundMessage, body["error"])
}

func TestRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 2
	router := NewRouter(&fakeService{}, cfg)

	for i := 0; i < 2; i++ {
		code, _ := do(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, code)
	}
	code, body := do(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, body["error"], "rate limit")
}
