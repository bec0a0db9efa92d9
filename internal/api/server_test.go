package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrev/internal/config"
	"github.com/dgallion1/docrev/internal/docxpkg"
	"github.com/dgallion1/docrev/internal/docxtest"
	"github.com/dgallion1/docrev/internal/engine"
	"github.com/dgallion1/docrev/internal/metrics"
	"github.com/dgallion1/docrev/internal/pipeline"
)

const testAPIKey = "secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.APIKey = testAPIKey
	cfg.WorkerCount = 1
	cfg.MaxUploadBytes = 1 << 20

	runner := engine.NewRunner(log, metrics.NewLatencyWindow(time.Hour))
	orch := pipeline.NewOrchestrator(cfg, runner, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(runner, orch, log, cfg)
}

type upload struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/revisions", nil)
	rec := serve(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing authorization", decode(t, rec)["error"])

	req = httptest.NewRequest(http.MethodPost, "/api/revisions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = serve(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid api key", decode(t, rec)["error"])
}

func TestRevisions(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/revisions",
		map[string]string{"options": `{"includeContext":true,"contextLength":10}`},
		upload{"file", "draft.docx", docxtest.Sample(t)})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "revisions", out["operation"])
	result := out["result"].(map[string]any)
	revs := result["revisions"].([]any)
	require.Len(t, revs, 2)
	first := revs[0].(map[string]any)
	assert.Equal(t, "insert", first["type"])
	assert.NotNil(t, first["context"])
	assert.NotNil(t, result["summary"])
	assert.Nil(t, out["files"])
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/comments", nil, upload{"file", "draft.docx", docxtest.Sample(t)})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode(t, rec)["result"].(map[string]any)
	comments := result["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "quick", comments[0].(map[string]any)["targetText"])
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/stats",
		map[string]string{"options": `{"includeAuthorBreakdown":true}`},
		upload{"file", "draft.docx", docxtest.Sample(t)})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode(t, rec)["result"].(map[string]any)
	assert.EqualValues(t, 2, result["revisions"].(map[string]any)["total"])
	assert.NotEmpty(t, result["authorBreakdown"])
}

func TestAccept(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/revisions/accept",
		map[string]string{"options": `{"ids":["1","42"]}`},
		upload{"file", "draft.docx", docxtest.Sample(t)})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Result struct {
			AcceptedCount int      `json:"acceptedCount"`
			AcceptedIDs   []string `json:"acceptedIds"`
			WarningIDs    []string `json:"warningIds"`
		} `json:"result"`
		Files map[string]fileResponse `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Contains(t, out.Files, "data")
	file := out.Files["data"]
	assert.Equal(t, 1, out.Result.AcceptedCount)
	assert.Equal(t, []string{"1"}, out.Result.AcceptedIDs)
	assert.Equal(t, []string{"42"}, out.Result.WarningIDs)
	assert.Equal(t, "draft.docx", file.FileName)
	assert.Equal(t, docxpkg.MIMEType, file.MimeType)

	doc := docxtest.Member(t, file.Data, docxpkg.DocumentPath)
	assert.NotContains(t, doc, "<w:ins")
	assert.Contains(t, doc, "<w:del")
}

func TestReject_AllIDs(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/revisions/reject",
		map[string]string{"options": `{"all":true}`},
		upload{"file", "draft.docx", docxtest.Sample(t)})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode(t, rec)["result"].(map[string]any)
	assert.EqualValues(t, 2, result["rejectedCount"])
}

func TestReject_FileKeyedByOutputName(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/revisions/reject",
		map[string]string{"options": `{"all":true,"outputName":"redlined"}`},
		upload{"file", "draft.docx", docxtest.Sample(t)})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Result struct {
			OutputName string `json:"outputName"`
		} `json:"result"`
		Files map[string]fileResponse `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "redlined", out.Result.OutputName)
	require.Len(t, out.Files, 1)
	file, ok := out.Files["redlined"]
	require.True(t, ok, "expected file under the requested output name")
	assert.NotContains(t, docxtest.Member(t, file.Data, docxpkg.DocumentPath), "<w:ins")
}

func TestInspectEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/inspect", nil, upload{"file", "draft.docx", docxtest.Sample(t)})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)["result"].(map[string]any)
	assert.NotEmpty(t, result["members"])
}

func TestOperationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		fields  map[string]string
		files   []upload
		status  int
		message string
	}{
		{
			name:   "missing file",
			status: http.StatusBadRequest,
		},
		{
			name:    "not a zip",
			files:   []upload{{"file", "x.docx", []byte("plain text")}},
			status:  http.StatusBadRequest,
			message: docxpkg.ErrInvalidArchive.Error(),
		},
		{
			name: "missing document",
			files: []upload{{"file", "x.docx", docxtest.Build(t,
				docxtest.Part{Name: docxpkg.ContentTypesPath, Content: docxtest.ContentTypes})}},
			status:  http.StatusUnprocessableEntity,
			message: docxpkg.ErrMissingDocument.Error(),
		},
		{
			name:   "bad options json",
			fields: map[string]string{"options": `{`},
			files:  []upload{{"file", "x.docx", docxtest.Sample(t)}},
			status: http.StatusBadRequest,
		},
		{
			name:   "context length out of range",
			fields: map[string]string{"options": `{"contextLength":20000}`},
			files:  []upload{{"file", "x.docx", docxtest.Sample(t)}},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, multipartRequest(t, "/api/revisions", tt.fields, tt.files...))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.message != "" {
				assert.Equal(t, tt.message, decode(t, rec)["error"])
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t)
	s.cfg.MaxUploadBytes = 10
	rec := serve(s, multipartRequest(t, "/api/stats", nil, upload{"file", "x.docx", docxtest.Sample(t)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestReport(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "/api/report", nil, upload{"file", "draft.docx", docxtest.Sample(t)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# draft\n"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")

	rec = serve(s, multipartRequest(t, "/api/report",
		map[string]string{"format": "html", "title": "Review"},
		upload{"file", "draft.docx", docxtest.Sample(t)}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Review</title>")

	rec = serve(s, multipartRequest(t, "/api/report",
		map[string]string{"format": "pdf"},
		upload{"file", "draft.docx", docxtest.Sample(t)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchLifecycle(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/batch",
		map[string]string{"operation": "accept", "options": `{"all":true}`},
		upload{"files", "a.docx", docxtest.Sample(t)},
		upload{"files", "b.docx", []byte("broken")},
	)
	rec := serve(s, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode(t, rec)
	jobID := accepted["job_id"].(string)
	assert.Equal(t, fmt.Sprintf("/api/jobs/%s", jobID), accepted["poll_url"])

	var snap pipeline.JobSnapshot
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		rec := serve(s, req)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status == pipeline.StatusPartial
	}, 5*time.Second, 10*time.Millisecond)

	require.Len(t, snap.Items, 2)
	assert.True(t, snap.Items[0].HasFile)
	assert.NotEmpty(t, snap.Items[1].Error)

	fileReq := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/items/0/file", nil)
	fileReq.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec = serve(s, fileReq)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, docxpkg.MIMEType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "a.docx")
	_, err := docxpkg.Open(rec.Body.Bytes())
	assert.NoError(t, err)

	fileReq = httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/items/1/file", nil)
	fileReq.Header.Set("Authorization", "Bearer "+testAPIKey)
	assert.Equal(t, http.StatusNotFound, serve(s, fileReq).Code)
}

func TestBatchValidation(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "/api/batch",
		map[string]string{"operation": "merge"},
		upload{"files", "a.docx", docxtest.Sample(t)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, multipartRequest(t, "/api/batch", map[string]string{"operation": "stats"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	assert.Equal(t, http.StatusNotFound, serve(s, req).Code)
}

func TestLatencyStats(t *testing.T) {
	s := newTestServer(t)
	serve(s, multipartRequest(t, "/api/stats", nil, upload{"file", "x.docx", docxtest.Sample(t)}))

	req := httptest.NewRequest(http.MethodGet, "/api/stats/latency", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	ops := out["operations"].(map[string]any)
	assert.Contains(t, ops, "stats")
	assert.Equal(t, "1h0m0s", out["window"])
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.docx", sanitizeFilename("../../etc/report.docx"))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Equal(t, pipeline.DefaultFilename, outputFilename(" "))
}
