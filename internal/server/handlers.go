package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/jobstore"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
	"git.home.luguber.info/inful/boqbuilder/internal/report"
	"git.home.luguber.info/inful/boqbuilder/internal/version"
)

const (
	uploadField       = "file"
	multipartMemory   = 32 << 20
	spreadsheetMIME   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	htmlContentType   = "text/html; charset=utf-8"
	jsonContentType   = "application/json; charset=utf-8"
	downloadExtension = ".xlsx"
)

var acceptedExtensions = map[string]bool{".dwg": true, ".dxf": true}

// SubmitResponse is returned by POST /api/jobs.
type SubmitResponse struct {
	JobID  string            `json:"job_id"`
	Status string            `json:"status"`
	Links  map[string]string `json:"links"`
}

// JobResponse wraps a record with links to its artifacts.
type JobResponse struct {
	*jobstore.Record
	Links map[string]string `json:"links"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	Uptime      float64   `json:"uptime"`
	QueueLength int       `json:"queue_length"`
	Jobs        int       `json:"jobs"`
}

func jobLinks(id string) map[string]string {
	base := "/api/jobs/" + id
	return map[string]string{
		"self":     base,
		"download": base + "/download",
		"report":   base + "/report",
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.MaxUploadBytes; limit > 0 {
		if r.ContentLength > limit {
			s.writeError(w, r, http.StatusRequestEntityTooLarge,
				derrors.ValidationError("upload exceeds size limit").WithContext("limit_bytes", limit).Build())
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge,
				derrors.ValidationError("upload exceeds size limit").WithContext("limit_bytes", tooLarge.Limit).Build())
			return
		}
		s.errorAdapter.WriteErrorResponse(w, r, derrors.WrapError(err, derrors.CategoryValidation, "invalid multipart upload").Build())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile(uploadField)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			derrors.ValidationError("missing upload field").WithContext("field", uploadField).Build())
		return
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(hdr.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !acceptedExtensions[ext] || name == ext {
		s.errorAdapter.WriteErrorResponse(w, r,
			derrors.ValidationError("unsupported drawing type").
				WithContext("filename", name).
				WithContext("accepted", ".dwg, .dxf").Build())
		return
	}

	id, err := s.opts.Submitter.Submit(r.Context(), name, file)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "Drawing uploaded", logfields.JobID(id), logfields.File(name), slog.Int64("bytes", hdr.Size))
	s.writeJSON(w, r, http.StatusAccepted, SubmitResponse{JobID: id, Status: "queued", Links: jobLinks(id)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records := s.opts.Records.List()
	out := make([]JobResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, JobResponse{Record: rec, Links: jobLinks(rec.JobID)})
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, JobResponse{Record: rec, Links: jobLinks(rec.JobID)})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	ws, err := s.opts.Workspaces.Lookup(rec.JobID)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.WrapError(err, derrors.CategoryValidation, "invalid job id").Build())
		return
	}
	path := ws.Artifact(report.WorkbookFile)
	f, err := os.Open(path)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.NotFoundError("workbook not available").
			WithContext("job_id", rec.JobID).
			WithContext("status", string(rec.Status)).Build())
		return
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.WrapError(err, derrors.CategoryFileSystem, "cannot read workbook").Build())
		return
	}

	filename := strings.TrimSuffix(report.WorkbookFile, downloadExtension) + "_" + rec.JobID + downloadExtension
	w.Header().Set("Content-Type", spreadsheetMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, st.ModTime(), f)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	md, err := s.reportMarkdown(rec)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	body, err := report.RenderHTML(md)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.WrapError(err, derrors.CategoryReport, "cannot render report").Build())
		return
	}
	w.Header().Set("Content-Type", htmlContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Page("BOQ job "+rec.JobID, body))
}

// reportMarkdown prefers the job's summary.md, then its failure record,
// then a status line for jobs still in flight.
func (s *Server) reportMarkdown(rec *jobstore.Record) ([]byte, error) {
	ws, err := s.opts.Workspaces.Lookup(rec.JobID)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryValidation, "invalid job id").Build()
	}
	if md, err := os.ReadFile(ws.Artifact(report.SummaryMDFile)); err == nil {
		return md, nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Job %s\n\n", rec.JobID)
	fmt.Fprintf(&buf, "- Status: **%s**\n", rec.Status)
	if rec.Input != "" {
		fmt.Fprintf(&buf, "- Drawing: `%s`\n", filepath.Base(rec.Input))
	}
	if rec.Attempts > 0 {
		fmt.Fprintf(&buf, "- Attempts: %d\n", rec.Attempts)
	}
	if f, err := report.ReadFailure(ws.Artifact(report.FailureFile)); err == nil {
		fmt.Fprintf(&buf, "\n## Failure\n\n| Stage | Kind | Message |\n|---|---|---|\n| %s | %s | %s |\n",
			f.Stage, f.Kind, strings.ReplaceAll(f.Message, "|", `\|`))
	} else if rec.Error != "" {
		fmt.Fprintf(&buf, "\n## Failure\n\n%s\n", rec.Error)
	}
	return buf.Bytes(), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(s.started).Seconds(),
	}
	if s.opts.Queue != nil {
		health.QueueLength = s.opts.Queue.Length()
	}
	if s.opts.Records != nil {
		health.Jobs = len(s.opts.Records.List())
	}
	s.writeJSON(w, r, http.StatusOK, health)
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) (*jobstore.Record, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.opts.Records.Get(id)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return nil, false
	}
	return rec, true
}

// writeJSON encodes into a buffer first so a marshal failure never sends a
// partial body.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.WrapError(err, derrors.CategoryInternal, "failed to encode response").Build())
		return
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed writing JSON response body", logfields.Error(err))
	}
}

// writeError sends a classified error with an explicit status code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	body, _ := json.Marshal(s.errorAdapter.FormatErrorResponse(err))
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
	slog.WarnContext(r.Context(), err.Error(), logfields.Status(status), logfields.Path(r.URL.Path))
}
