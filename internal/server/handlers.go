package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/engine"
	"github.com/Veraticus/rxsync/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Multipart field names of an upload.
const (
	FieldFormulary  = "formulary"
	FieldInvoice    = "invoice"
	FieldPriceTable = "pricetable"
)

const (
	outputDir       = "output"
	multipartMemory = 8 << 20
)

// AllowedExtensions lists the file types accepted for upload.
var AllowedExtensions = map[string]bool{
	"txt":      true,
	"xls":      true,
	"xlsx":     true,
	"csv":      true,
	"tsv":      true,
	"md":       true,
	"markdown": true,
}

// RunResponse describes a completed upload run.
type RunResponse struct {
	ID        string         `json:"id"`
	Stats     StatsResponse  `json:"stats"`
	Changes   []ChangeJSON   `json:"changes"`
	Review    []ReviewJSON   `json:"review"`
	Unmatched []string       `json:"unmatched"`
	Files     []FileResponse `json:"files"`
}

// StatsResponse mirrors engine.Stats.
type StatsResponse struct {
	Entries      int `json:"entries"`
	Matches      int `json:"matches"`
	SoftMatches  int `json:"soft_matches"`
	PriceChanges int `json:"price_changes"`
	Ambiguous    int `json:"ambiguous"`
	Unmatched    int `json:"unmatched"`
}

// ChangeJSON is one applied price change.
type ChangeJSON struct {
	NameDose   string `json:"name_dose"`
	OldCost    string `json:"old_cost"`
	NewCost    string `json:"new_cost"`
	ItemNumber string `json:"item_number"`
	Invoice    string `json:"invoice"`
}

// ReviewJSON is an ambiguous candidate left for the operator.
type ReviewJSON struct {
	NameDose    string `json:"name_dose"`
	Cost        string `json:"cost"`
	Invoice     string `json:"invoice"`
	InvoiceCost string `json:"invoice_cost"`
	ItemNumber  string `json:"item_number"`
}

// FileResponse names a downloadable output.
type FileResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Runs   int    `json:"runs"`
}

type uploadedFile struct {
	file   multipart.File
	header *multipart.FileHeader
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Server.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload too large. Maximum allowed size is %d MB", s.cfg.Server.MaxUploadMB))
			return
		}
		respondError(w, http.StatusBadRequest, "Expected a multipart form upload")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("Failed to remove multipart temp files", "error", err)
		}
	}()

	if len(r.MultipartForm.File) == 0 {
		respondError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	files := make(map[string]uploadedFile)
	for _, field := range []string{FieldFormulary, FieldInvoice, FieldPriceTable} {
		f, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			if field == FieldPriceTable {
				continue
			}
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Missing required file: %s", field))
			return
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Could not read %s upload", field))
			return
		}
		defer func() { _ = f.Close() }()

		if !AllowedFile(header.Filename) {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("Unsupported file type for %s: %q", field, header.Filename))
			return
		}
		if header.Size == 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Uploaded %s is empty", field))
			return
		}
		files[field] = uploadedFile{file: f, header: header}
	}

	id := uuid.New().String()
	runDir := filepath.Join(s.cfg.Server.UploadDir, id)

	opts, err := s.store(runDir, files)
	if err != nil {
		slog.Error("Failed to store upload", "run", id, "error", err)
		s.metrics.RunsTotal.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "Could not store uploaded files")
		return
	}

	summary, err := s.run(r, opts)
	if err != nil {
		status, msg := errorStatus(err)
		slog.Warn("Upload run failed", "run", id, "status", status, "error", err)
		s.metrics.RunsTotal.WithLabelValues("failed").Inc()
		respondError(w, status, msg)
		return
	}

	s.metrics.RunsTotal.WithLabelValues("ok").Inc()
	s.metrics.PriceChangesTotal.Add(float64(summary.Result.Stats.PriceChanges))

	slog.Info("Upload run complete",
		"run", id,
		"price_changes", summary.Result.Stats.PriceChanges,
		"review", len(summary.Result.Declined),
		"duration", summary.Duration)

	respondWithJSON(w, http.StatusOK, newRunResponse(id, summary))
}

// store saves each upload under runDir using the field name and the original
// extension, and returns the pipeline options for the run.
func (s *Server) store(runDir string, files map[string]uploadedFile) (pipeline.Options, error) {
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return pipeline.Options{}, fmt.Errorf("failed to create run directory: %w", err)
	}

	paths := make(map[string]string, len(files))
	for field, up := range files {
		path := filepath.Join(runDir, field+strings.ToLower(filepath.Ext(up.header.Filename)))
		if err := saveFile(path, up.file); err != nil {
			return pipeline.Options{}, err
		}
		paths[field] = path
	}

	outputs := s.cfg.Outputs.In(filepath.Join(runDir, outputDir)).OutputPaths()
	return pipeline.Options{
		FormularyPath:  paths[FieldFormulary],
		InvoicePath:    paths[FieldInvoice],
		PriceTablePath: paths[FieldPriceTable],
		OutFormulary:   outputs.Formulary,
		OutDoses:       outputs.Doses,
		OutPriceTable:  outputs.PriceTable,
		OutReport:      outputs.Report,
	}, nil
}

func (s *Server) run(r *http.Request, opts pipeline.Options) (*pipeline.Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.runs++
	return pipeline.Run(r.Context(), opts, engine.StaticResolver{Accept: false})
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "file")

	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	path := filepath.Join(s.cfg.Server.UploadDir, id, outputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.runMu.Lock()
	runs := s.runs
	s.runMu.Unlock()

	respondWithJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Runs:   runs,
	})
}

// AllowedFile reports whether filename carries an accepted extension.
func AllowedFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return AllowedExtensions[ext]
}

func errorStatus(err error) (int, string) {
	var parseErr *common.ParseError
	var userErr *common.UserError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, parseErr.Error()
	case errors.As(err, &userErr):
		return http.StatusBadRequest, userErr.UserMessage
	case errors.Is(err, common.ErrUnsupportedFormat):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Reconciliation failed"
	}
}

func newRunResponse(id string, summary *pipeline.Summary) RunResponse {
	result := summary.Result
	resp := RunResponse{
		ID: id,
		Stats: StatsResponse{
			Entries:      result.Stats.Entries,
			Matches:      result.Stats.Matches,
			SoftMatches:  result.Stats.SoftMatches,
			PriceChanges: result.Stats.PriceChanges,
			Ambiguous:    result.Stats.Ambiguous,
			Unmatched:    result.Stats.Unmatched,
		},
		Changes:   make([]ChangeJSON, 0, len(result.Changes)),
		Review:    make([]ReviewJSON, 0, len(result.Declined)),
		Unmatched: make([]string, 0, len(result.Unmatched)),
		Files:     make([]FileResponse, 0, len(summary.Outputs)),
	}

	for _, c := range result.Changes {
		resp.Changes = append(resp.Changes, ChangeJSON{
			NameDose:   c.NameDose,
			OldCost:    c.OldCost,
			NewCost:    c.NewCost,
			ItemNumber: c.ItemNumber,
			Invoice:    c.InvoiceNameDose,
		})
	}
	for _, m := range result.Declined {
		resp.Review = append(resp.Review, ReviewJSON{
			NameDose:    m.Entry.NameDose,
			Cost:        m.Entry.Cost,
			Invoice:     m.Invoice.NameDose,
			InvoiceCost: m.Invoice.Cost,
			ItemNumber:  m.Invoice.ItemNumber,
		})
	}
	for _, e := range result.Unmatched {
		resp.Unmatched = append(resp.Unmatched, e.NameDose)
	}
	for _, path := range summary.Outputs {
		name := filepath.Base(path)
		resp.Files = append(resp.Files, FileResponse{
			Name: name,
			URL:  fmt.Sprintf("/runs/%s/%s", id, name),
		})
	}

	return resp
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Error("Failed to encode JSON response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
