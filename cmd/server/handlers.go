package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/detect"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/storage"
	"github.com/himanishpuri/LaughTrack/pkg/logger"
	"github.com/himanishpuri/LaughTrack/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service laughtrack.Service
	config  *ServerConfig
	log     laughtrack.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	UploadDir      string
	MaxUploadBytes int64
	SampleRate     int
	Engine         string
	Label          string
	Workers        int
	AllowedOrigins []string
	AnalyzeTimeout time.Duration
}

// NewServer creates a new server instance
func NewServer(service laughtrack.Service, config *ServerConfig) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 100 << 20
	}
	if config.AnalyzeTimeout <= 0 {
		config.AnalyzeTimeout = 5 * time.Minute
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "LaughTrack API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":    "GET /health",
			"metrics":   "GET /api/health/metrics",
			"analyze":   "POST /api/analyze",
			"youtube":   "POST /api/analyze/youtube",
			"runs":      "GET /api/runs",
			"getRun":    "GET /api/runs/{id}",
			"deleteRun": "DELETE /api/runs/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns()
	if err != nil {
		s.log.Errorf("Failed to get run count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		RunCount:     len(runs),
		Engine:       s.config.Engine,
		Label:        s.config.Label,
		Workers:      s.config.Workers,
		SampleRate:   s.config.SampleRate,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
	})
}

// handleAnalyze handles POST /api/analyze (multipart file upload)
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.config.AnalyzeTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	params, err := AnalyzeRequest{
		Window:    r.FormValue("window"),
		Timescale: r.FormValue("timescale"),
		Threshold: r.FormValue("threshold"),
		Overlap:   r.FormValue("overlap"),
	}.Params()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.log.Errorf("Failed to get audio file: %v", err)
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	tempFile, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.log.Errorf("Failed to save upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	defer os.Remove(tempFile)

	s.log.Infof("Analyzing upload %s (%s)", header.Filename, humanize.Bytes(uint64(header.Size)))
	rep, err := s.service.Analyze(ctx, tempFile, params)
	if err != nil {
		status := analyzeStatus(err)
		s.log.Errorf("Analysis of %s failed: %v", header.Filename, err)
		s.respondError(w, status, err.Error())
		return
	}

	s.respondReport(w, rep)
}

// handleAnalyzeURL handles POST /api/analyze/youtube (JSON body with a media URL)
func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.config.AnalyzeTimeout)
	defer cancel()

	var req AnalyzeURLRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !audio.IsRemote(req.URL) {
		s.respondError(w, http.StatusBadRequest, "url must be an http(s) URL")
		return
	}
	params, err := req.Params()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.service.Analyze(ctx, req.URL, params)
	if err != nil {
		status := analyzeStatus(err)
		s.log.Errorf("Analysis of %s failed: %v", req.URL, err)
		s.respondError(w, status, err.Error())
		return
	}
	s.respondReport(w, rep)
}

func (s *Server) respondReport(w http.ResponseWriter, rep *laughtrack.Report) {
	s.respondJSON(w, http.StatusOK, AnalyzeResponse{
		RunID:      rep.RunID,
		Label:      rep.Label,
		Engine:     rep.Engine,
		Params:     paramsDTO(rep.Params),
		Windows:    rep.Windows,
		DurationMs: rep.Info.Duration.Milliseconds(),
		ElapsedMs:  rep.Elapsed.Milliseconds(),
		Results:    json.RawMessage(rep.JSON),
		Events:     eventDTOs(rep.Events),
	})
}

// saveUpload copies an uploaded file into the upload directory, keeping its
// extension so non-WAV input can still be recognised by ffmpeg.
func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	path, _, err := utils.SaveStream(s.config.UploadDir, "upload-*"+ext, src)
	return path, err
}

func analyzeStatus(err error) int {
	var ce *classify.Error
	switch {
	case errors.Is(err, audio.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, audio.ErrOpen):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ce):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns()
	if err != nil {
		s.log.Errorf("Failed to list runs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i := range runs {
		dtos[i] = runDTO(&runs[i])
	}
	s.respondJSON(w, http.StatusOK, ListRunsResponse{
		Runs:  dtos,
		Count: len(dtos),
	})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.service.GetRun(id)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.log.Warnf("Run not found: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Run with ID %s not found", id))
		return
	}
	if err != nil {
		s.log.Errorf("Failed to get run %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	dto := runDTO(run)
	dto.Results = json.RawMessage(run.JSON)
	dto.Events = eventDTOs(run.Events)
	s.respondJSON(w, http.StatusOK, dto)
}

// handleDeleteRun handles DELETE /api/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request, id string) {
	err := s.service.DeleteRun(id)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Run with ID %s not found", id))
		return
	}
	if err != nil {
		s.log.Errorf("Failed to delete run %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	s.log.Infof("Deleted run %s", id)
	s.respondJSON(w, http.StatusOK, DeleteRunResponse{
		Message: "Run deleted successfully",
		ID:      id,
	})
}

// handleRuns routes requests to /api/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleListRuns(w, r)
}

// handleRun routes requests to /api/runs/{id}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Run ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRun(w, r, id)
	case http.MethodDelete:
		s.handleDeleteRun(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func runDTO(run *laughtrack.Run) RunDTO {
	return RunDTO{
		ID:         run.ID,
		AudioPath:  run.AudioPath,
		Label:      run.Label,
		Engine:     run.Engine,
		Params:     paramsDTO(run.Params),
		Windows:    run.Windows,
		EventCount: run.EventCount,
		ElapsedMs:  run.Elapsed.Milliseconds(),
		CreatedAt:  run.CreatedAt.Format(time.RFC3339),
	}
}

func eventDTOs(events []detect.Event) []EventDTO {
	out := make([]EventDTO, len(events))
	for i, ev := range events {
		out[i] = EventDTO{Time: ev.TimeKey, Confidence: ev.Confidence}
	}
	return out
}
