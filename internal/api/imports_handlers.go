package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/lead-importer/internal/config"
	"github.com/ignite/lead-importer/internal/importer"
	"github.com/ignite/lead-importer/internal/ingest"
	"github.com/ignite/lead-importer/internal/mapping"
	"github.com/ignite/lead-importer/internal/pkg/logger"
)

// Handlers serves the import API. Uploaded files are spooled to uploadDir
// under the job id so the parse phase can stream them after the request
// returns.
type Handlers struct {
	svc        *importer.Service
	uploadDir  string
	maxUpload  int64
	sampleRows int
}

func NewHandlers(svc *importer.Service, cfg config.ImportConfig, uploadDir string) *Handlers {
	return &Handlers{
		svc:        svc,
		uploadDir:  uploadDir,
		maxUpload:  cfg.MaxUploadBytes,
		sampleRows: cfg.SampleRows,
	}
}

// HealthCheck reports service liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "service": "lead-importer"})
}

// HandleListFields returns the importable CRM fields
func (h *Handlers) HandleListFields(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"fields": mapping.AllFields})
}

// HandleAnalyze inspects an uploaded file without creating a job: it reads
// the header and a few sample rows and returns suggested column mappings
// for the review screen.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"file field required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	var (
		header    []string
		samples   [][]string
		delimiter rune
	)
	if ingest.IsWorkbook(hdr.Filename) {
		header, samples, err = ingest.ReadWorkbookHeader(file, r.FormValue("sheet"), h.sampleRows)
	} else {
		header, samples, delimiter, err = ingest.ReadDelimitedHeader(file, requestedDelimiter(r), h.sampleRows)
	}
	if err != nil {
		logger.Warn("analyze failed", "file", hdr.Filename, "error", err.Error())
		http.Error(w, `{"error":"could not read file header"}`, http.StatusUnprocessableEntity)
		return
	}

	suggestions := mapping.SuggestMappings(header)
	columns := make([]map[string]interface{}, 0, len(suggestions))
	for _, m := range suggestions {
		columns = append(columns, map[string]interface{}{
			"column":        m.SourceColumn,
			"index":         m.SourceIndex,
			"target_field":  m.TargetField,
			"confidence":    m.Confidence,
			"auto_accepted": m.TargetField != "" && m.Confidence >= mapping.AutoAcceptConfidence,
		})
	}

	resp := map[string]interface{}{
		"filename": hdr.Filename,
		"columns":  columns,
		"samples":  samples,
	}
	if delimiter != 0 {
		resp["delimiter"] = string(delimiter)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleCreateImport accepts the file plus the reviewed mapping, creates a
// job, and starts the parse phase in the background. The client polls the
// job resource for progress.
func (h *Handlers) HandleCreateImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"file field required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	var mappings []mapping.ColumnMapping
	if err := json.Unmarshal([]byte(r.FormValue("mapping")), &mappings); err != nil {
		http.Error(w, `{"error":"mapping field must be a JSON array"}`, http.StatusBadRequest)
		return
	}
	for _, m := range mappings {
		if m.TargetField != "" && !mapping.IsValidField(m.TargetField) {
			http.Error(w, `{"error":"unknown target field `+string(m.TargetField)+`"}`, http.StatusBadRequest)
			return
		}
	}

	job, err := h.svc.CreateJob(r.Context(), hdr.Filename, mappings)
	if err != nil {
		logger.Error("create import job", "error", err.Error())
		http.Error(w, `{"error":"failed to create import"}`, http.StatusInternalServerError)
		return
	}

	path, err := h.spool(job.ID, hdr.Filename, file)
	if err != nil {
		logger.Error("spool upload", "job_id", job.ID.String(), "error", err.Error())
		http.Error(w, `{"error":"failed to store upload"}`, http.StatusInternalServerError)
		return
	}

	opts := ingest.ParseOptions{
		Delimiter: requestedDelimiter(r),
		SheetName: r.FormValue("sheet"),
	}
	go func() {
		defer os.Remove(path)
		if _, err := h.svc.RunParse(context.Background(), job.ID, ingest.LocalFile{Path: path}, mappings, opts); err != nil {
			logger.Error("parse phase", "job_id", job.ID.String(), "error", err.Error())
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

// HandleGetImport returns the job record plus the latest progress snapshot
func (h *Handlers) HandleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		http.Error(w, `{"error":"invalid import id"}`, http.StatusBadRequest)
		return
	}

	job, err := h.svc.GetJob(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, `{"error":"import not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"failed to load import"}`, http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{"job": job}
	if progress, err := h.svc.GetProgress(r.Context(), id); err == nil && progress != nil {
		resp["progress"] = progress
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleCommit starts phase two for a job awaiting review
func (h *Handlers) HandleCommit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		http.Error(w, `{"error":"invalid import id"}`, http.StatusBadRequest)
		return
	}

	var opts importer.CommitOptions
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, `{"error":"invalid commit options"}`, http.StatusBadRequest)
			return
		}
	}

	job, err := h.svc.GetJob(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, `{"error":"import not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"failed to load import"}`, http.StatusInternalServerError)
		return
	}
	if job.Status != importer.JobAwaitingReview {
		http.Error(w, `{"error":"import is not awaiting review"}`, http.StatusConflict)
		return
	}

	go func() {
		if _, err := h.svc.Commit(context.Background(), id, opts); err != nil {
			logger.Error("commit phase", "job_id", id.String(), "error", err.Error())
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": id.String(), "status": importer.JobCommitting})
}

// spool copies the upload to disk under the job id, keeping the original
// extension so the parse phase picks the right reader.
func (h *Handlers) spool(jobID uuid.UUID, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploadDir, jobID.String()+filepath.Ext(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// requestedDelimiter reads an explicit single-character delimiter override
// from the form; zero means auto-detect.
func requestedDelimiter(r *http.Request) rune {
	v := r.FormValue("delimiter")
	if v == "" {
		return 0
	}
	d, _ := utf8.DecodeRuneInString(v)
	return d
}
