package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docrev/internal/docxpkg"
	"github.com/dgallion1/docrev/internal/engine"
	"github.com/dgallion1/docrev/internal/pipeline"
	"github.com/dgallion1/docrev/internal/report"
)

// fileResponse carries a rebuilt document back to the caller. Data is
// base64-encoded by encoding/json.
type fileResponse struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// operationResponse keys a rebuilt document by the caller's output name
// (options.outputName).
type operationResponse struct {
	Operation engine.Operation         `json:"operation"`
	Result    any                      `json:"result"`
	Files     map[string]*fileResponse `json:"files,omitempty"`
}

// handleOperation serves one single-document operation. The request is a
// multipart form with the document in "file" and optional JSON options in
// "options".
func (s *Server) handleOperation(op engine.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		opts, err := s.parseOptions(r.FormValue("options"))
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, ok := s.readUpload(w, file)
		if !ok {
			return
		}

		out, err := s.runner.Run(r.Context(), op, data, opts)
		if err != nil {
			writeOperationError(w, err)
			return
		}

		resp := operationResponse{Operation: out.Operation, Result: out.Result}
		if op.Mutates() {
			resp.Files = map[string]*fileResponse{
				opts.OutputName: {
					FileName: outputFilename(header.Filename),
					MimeType: docxpkg.MIMEType,
					Data:     out.Document,
				},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, ok := s.readUpload(w, file)
	if !ok {
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(sanitizeFilename(header.Filename), ".docx")
	}
	rep, err := report.Generate(data, title)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	switch format := r.FormValue("format"); format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(rep.Markdown()))
	case "html":
		page, err := rep.HTML()
		if err != nil {
			s.log.Error("render report", "error", err)
			jsonError(w, "failed to render report", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	default:
		jsonError(w, fmt.Sprintf("unsupported report format: %s", format), http.StatusBadRequest)
	}
}

// parseOptions decodes request options over the configured defaults, so absent
// keys keep their default values.
func (s *Server) parseOptions(raw string) (engine.Options, error) {
	opts := engine.OptionsFrom(s.cfg.Defaults)
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return engine.Options{}, fmt.Errorf("invalid options: %w", err)
		}
	}
	if err := opts.Validate(); err != nil {
		return engine.Options{}, err
	}
	return opts, nil
}

// readUpload reads one uploaded file, writing an error response when it is
// unreadable or too large.
func (s *Server) readUpload(w http.ResponseWriter, file multipart.File) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return data, true
}

// writeOperationError maps engine errors to HTTP statuses.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docxpkg.ErrMissingDocument):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case engine.IsInputError(err):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

// outputFilename names a rebuilt document after its upload.
func outputFilename(uploaded string) string {
	if strings.TrimSpace(uploaded) == "" {
		return pipeline.DefaultFilename
	}
	return sanitizeFilename(uploaded)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
