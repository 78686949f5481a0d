package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"captioner/internal/api"
	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/services"
)

const (
	maxJSONBody       = 8 << 20
	multipartOverhead = 1 << 20
	uploadField       = "video_file"
)

type apiServer struct {
	bind      string
	logger    *slog.Logger
	daemon    *Daemon
	maxUpload int64

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      strings.TrimSpace(cfg.Paths.APIBind),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		daemon:    d,
		maxUpload: cfg.Upload.MaxBytes,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/media", s.handleUpload)
	mux.HandleFunc("POST /api/media/{id}/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/transcripts/{id}", s.handleGetTranscript)
	mux.HandleFunc("PUT /api/transcripts/{id}/segments", s.handleReplaceSegments)
	mux.HandleFunc("POST /api/transcripts/{id}/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/renders", s.handleSubmitRender)
	mux.HandleFunc("GET /api/renders", s.handleListRenders)
	mux.HandleFunc("GET /api/renders/{id}", s.handlePollRender)
	mux.HandleFunc("GET /api/renders/{id}/result", s.handleRenderResult)
	mux.HandleFunc("GET /api/outputs/{name}", s.handleOutput)
	return requestIDMiddleware(authMiddleware(token, mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		SessionID:    status.SessionID,
		Dispatcher:   status.Dispatcher,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: deps,
	})
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInput, "upload", "parse", "expected multipart/form-data", err))
		return
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, r, uploadReadError(err))
			return
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		resp, err := s.daemon.services.Media.Upload(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			s.writeError(w, r, uploadReadError(err))
			return
		}
		s.writeJSON(w, http.StatusCreated, resp)
		return
	}
	s.writeError(w, r, services.Wrap(services.ErrInput, "upload", "validate", "no file selected", nil))
}

func uploadReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return services.Wrap(services.ErrInput, "upload", "validate", fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit), nil)
	}
	return err
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.services.Media.Ingest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Cached {
		status = http.StatusOK
	}
	s.writeJSON(w, status, resp)
}

func (s *apiServer) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	doc, err := s.daemon.services.Transcripts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *apiServer) handleReplaceSegments(w http.ResponseWriter, r *http.Request) {
	var req api.ReplaceSegmentsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	doc, err := s.daemon.services.Transcripts.ReplaceSegments(r.Context(), r.PathValue("id"), req.Segments)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *apiServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req api.TranslateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.daemon.services.Transcripts.Translate(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSubmitRender(w http.ResponseWriter, r *http.Request) {
	var req api.RenderRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	job, err := s.daemon.services.Renders.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/renders/"+job.ID)
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *apiServer) handleListRenders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var states []string
	for _, value := range query["state"] {
		states = append(states, strings.Split(value, ",")...)
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, services.Wrap(services.ErrInput, "render", "list", fmt.Sprintf("invalid limit %q", raw), nil))
			return
		}
		limit = parsed
	}
	jobs, err := s.daemon.services.Renders.List(r.Context(), states, query.Get("media_id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handlePollRender(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.services.Renders.Poll(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleRenderResult(w http.ResponseWriter, r *http.Request) {
	path, err := s.daemon.services.Renders.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	serveAttachment(w, r, path)
}

func (s *apiServer) handleOutput(w http.ResponseWriter, r *http.Request) {
	path, err := s.daemon.services.Renders.Output(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	serveAttachment(w, r, path)
}

func serveAttachment(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(path)}))
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInput, "api", "decode", "invalid JSON body", err))
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	details := services.Details(err)
	body := api.ErrorResponse{Error: details.Message, Kind: details.Kind}
	if body.Error == "" || status >= http.StatusInternalServerError {
		body.Error = err.Error()
	}
	if errors.Is(err, api.ErrResultNotReady) {
		body.Kind = "not ready"
	}
	if body.Kind == "" {
		body.Kind = "internal"
	}
	if status >= http.StatusInternalServerError {
		logger := logging.WithContext(r.Context(), s.logger)
		logger.Error("api request failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.String(logging.FieldErrorKind, body.Kind),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, body)
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	if errors.Is(err, api.ErrResultNotReady) {
		return http.StatusConflict
	}
	switch services.Marker(err) {
	case services.ErrInput:
		return http.StatusBadRequest
	case services.ErrNotFound:
		return http.StatusNotFound
	case services.ErrTranscriptMissing:
		return http.StatusConflict
	case services.ErrRecognition, services.ErrExtraction, services.ErrExternalTool:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
