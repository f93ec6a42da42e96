// Package server exposes the capture engine over HTTP: scheduling, progress
// polling, artifact download, and metrics.
package server

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/api/schemas"
	"github.com/marqueewinq/shooter/internal/capture"
	"github.com/marqueewinq/shooter/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scheduler accepts a group of capture jobs for asynchronous execution.
// Scheduling never blocks on the captures themselves.
type Scheduler interface {
	Schedule(groupID string, jobs []capture.Job)
}

// Server is the HTTP face of the capture engine.
type Server struct {
	logger    *zap.Logger
	store     *store.Store
	scheduler Scheduler
	router    chi.Router
}

// New assembles the router. The registry carries the capture metrics
// alongside the default process collectors.
func New(logger *zap.Logger, st *store.Store, scheduler Scheduler, registry *prometheus.Registry) *Server {
	s := &Server{
		logger:    logger.Named("server"),
		store:     st,
		scheduler: scheduler,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleHealth)
	r.Post("/take_screenshots/", s.handleSchedule)
	r.Get("/take_screenshots/{groupID}", s.handleProgress)
	r.Get("/take_screenshots/{groupID}/zip", s.handleDownload)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.router = r
	return s
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"message": "shooter is running"})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req schemas.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	configs, err := req.Normalize()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	groupID := uuid.New().String()
	jobs := make([]capture.Job, 0, len(configs))
	tasks := make(map[string]string, len(configs))
	for _, cfg := range configs {
		taskID := uuid.New().String()
		jobs = append(jobs, capture.Job{TaskID: taskID, Config: cfg})
		tasks[taskID] = cfg.URL
	}

	if err := s.store.CreateGroup(r.Context(), groupID, tasks); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.scheduler.Schedule(groupID, jobs)

	s.logger.Info("capture group scheduled", zap.String("group_id", groupID), zap.Int("tasks", len(jobs)))
	s.respond(w, http.StatusOK, schemas.CaptureResponse{
		Message:       "Screenshots are being taken",
		GroupResultID: groupID,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	progress, err := s.store.GroupProgress(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			s.respondError(w, http.StatusConflict, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, progress)
}

// handleDownload streams a zip of every successful task's artifact directory
// in the group.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	paths, err := s.store.GroupOutputPaths(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			s.respondError(w, http.StatusConflict, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if len(paths) == 0 {
		s.respondError(w, http.StatusNotFound, errors.New("no finished artifacts for this group yet"))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+groupID+`.zip"`)

	zw := zip.NewWriter(w)
	defer zw.Close()
	for _, dir := range paths {
		if err := addDirToZip(r.Context(), zw, dir); err != nil {
			// The response is already streaming; log and truncate.
			s.logger.Error("failed to archive output directory", zap.String("dir", dir), zap.Error(err))
			return
		}
	}
}

func addDirToZip(ctx context.Context, zw *zip.Writer, dir string) error {
	base := filepath.Dir(dir)
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respond(w, status, map[string]string{"detail": err.Error()})
}
