package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/copyleftdev/curvefit/internal/config"
	apperrors "github.com/copyleftdev/curvefit/internal/errors"
	"github.com/copyleftdev/curvefit/internal/fit"
	"github.com/copyleftdev/curvefit/internal/frame"
	"github.com/copyleftdev/curvefit/internal/logging"
	"github.com/copyleftdev/curvefit/internal/metrics"
)

const maxBodyBytes = 16 << 20

var validate = validator.New()

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server runs fit plans as asynchronous jobs behind HTTP and JSON-RPC 2.0
// endpoints.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *metrics.Metrics

	jobs *jobTable
	wg   sync.WaitGroup
}

// NewServer creates a new server instance. m may be nil.
func NewServer(cfg *config.Config, logger Logger, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		jobs:    newJobTable(),
	}
}

// Router wires middleware, health and metrics endpoints and the API.
func (s *Server) Router(logger *logging.Logger, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(apperrors.RecoveryMiddleware(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/families", s.handleFamilies)
		r.Post("/fits", s.handleCreateFit)
		r.Get("/fits", s.handleListFits)
		r.Get("/fits/{id}", s.handleGetFit)
		r.Delete("/fits/{id}", s.handleCancelFit)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// StartFit validates plan, builds its frame and runs it in the background.
func (s *Server) StartFit(plan *frame.Plan) (JobView, error) {
	const op = "Server.StartFit"

	if plan == nil {
		return JobView{}, apperrors.Wrap(apperrors.ErrInvalidArgument, "missing plan").WithOperation(op)
	}
	if err := plan.Validate(); err != nil {
		return JobView{}, invalid(err, "invalid plan").WithOperation(op)
	}

	opts, err := s.cfg.FrameOptions()
	if err != nil {
		return JobView{}, apperrors.Wrap(err, "invalid fit defaults").WithOperation(op)
	}
	opts.Logger = logging.NewZapLogger(s.logger.WithFields(map[string]interface{}{"component": "frame"}))
	if s.metrics != nil {
		opts.Recorder = s.metrics
	}
	if opts, err = plan.Apply(opts); err != nil {
		return JobView{}, invalid(err, "invalid plan options").WithOperation(op)
	}

	f, err := frame.New(plan.Index, plan.Columns, opts)
	if err != nil {
		return JobView{}, invalid(err, "invalid plan data").WithOperation(op)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := s.jobs.add(plan.Name, cancel)

	s.wg.Add(1)
	go s.runJob(ctx, job.ID, f, plan, cancel)

	s.logger.Info("Fit job created", map[string]interface{}{
		"job_id":  job.ID,
		"name":    plan.Name,
		"columns": len(plan.Columns),
		"fits":    len(plan.Fits),
	})
	return s.jobs.get(job.ID)
}

// Status returns the job with the given id.
func (s *Server) Status(id string) (JobView, error) {
	return s.jobs.get(id)
}

// Cancel stops a pending or running job.
func (s *Server) Cancel(id string) (JobView, error) {
	view, err := s.jobs.cancel(id)
	if err != nil {
		return JobView{}, err
	}
	s.logger.Info("Fit job cancelled", map[string]interface{}{"job_id": id})
	return view, nil
}

// runJob executes the plan and records the outcome.
func (s *Server) runJob(ctx context.Context, id string, f *frame.Frame, plan *frame.Plan, cancel context.CancelFunc) {
	defer s.wg.Done()
	defer cancel()

	started := false
	s.jobs.update(id, func(j *Job) {
		if j.Status == StatusPending {
			j.Status = StatusRunning
			j.LastUpdated = time.Now()
			started = true
		}
	})
	if !started {
		return
	}
	if s.metrics != nil {
		s.metrics.JobStarted()
	}

	start := time.Now()
	err := f.Run(ctx, plan)
	rows := f.Summary(plan.Limit)

	var final JobStatus
	s.jobs.update(id, func(j *Job) {
		if j.Status.Terminal() {
			final = j.Status
			if s.metrics != nil {
				s.metrics.JobFinished(string(final))
			}
			return
		}
		j.Rows = rows
		switch {
		case err == nil:
			j.finish(StatusCompleted)
		case ctx.Err() != nil:
			j.finish(StatusCancelled)
		default:
			j.Err = err.Error()
			j.finish(StatusFailed)
		}
		final = j.Status
		if s.metrics != nil {
			s.metrics.JobFinished(string(final))
		}
	})

	fields := map[string]interface{}{
		"job_id":   id,
		"status":   final,
		"rows":     len(rows),
		"duration": time.Since(start).String(),
	}
	if final == StatusFailed {
		fields["error"] = err.Error()
		s.logger.Error("Fit job failed", fields)
		return
	}
	s.logger.Info("Fit job finished", fields)
}

// Close cancels every job and waits for them to stop.
func (s *Server) Close() error {
	s.jobs.cancelAll()
	s.wg.Wait()
	return nil
}

func invalid(err error, msg string) *apperrors.Error {
	return apperrors.Wrap(fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err), msg)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jobParams struct {
	JobID string `json:"job_id" validate:"required,uuid"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&request); err != nil {
		s.respondWithError(w, apperrors.RPCParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, apperrors.RPCInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "fit.start":
		var plan frame.Plan
		if err = decodeParams(request.Params, &plan); err == nil {
			result, err = s.StartFit(&plan)
		}
	case "fit.status":
		var p jobParams
		if err = decodeJobParams(request.Params, &p); err == nil {
			result, err = s.Status(p.JobID)
		}
	case "fit.cancel":
		var p jobParams
		if err = decodeJobParams(request.Params, &p); err == nil {
			result, err = s.Cancel(p.JobID)
		}
	case "fit.list":
		result = s.jobs.list()
	case "fit.families":
		result = fit.Families()
	default:
		s.respondWithError(w, apperrors.RPCMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := apperrors.RPCCode(err)
		message := err.Error()
		if code == apperrors.RPCServerError {
			message = "Server error"
			s.logger.Error("RPC method failed", map[string]interface{}{
				"method": request.Method,
				"error":  err.Error(),
			})
		}
		s.respondWithError(w, code, message, request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// decodeParams accepts params as an object or as an array holding one.
func decodeParams(raw json.RawMessage, dst interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return apperrors.Wrap(apperrors.ErrInvalidArgument, "missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return invalid(err, "invalid parameter format")
		}
		if len(list) == 0 {
			return apperrors.Wrap(apperrors.ErrInvalidArgument, "missing required parameters")
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalid(err, "invalid parameter format, expected object")
	}
	return nil
}

func decodeJobParams(raw json.RawMessage, p *jobParams) error {
	if err := decodeParams(raw, p); err != nil {
		return err
	}
	if err := validate.Struct(p); err != nil {
		return invalid(err, "job_id must be a job identifier")
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Debug("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON writes body with status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) respondREST(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{"error": message})
		message = http.StatusText(status)
	}
	s.respondJSON(w, status, map[string]interface{}{"error": message})
}

// handleCreateFit handles POST /api/v1/fits with a plan as the body.
func (s *Server) handleCreateFit(w http.ResponseWriter, r *http.Request) {
	var plan frame.Plan
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&plan); err != nil {
		s.respondREST(w, invalid(err, "invalid request body"))
		return
	}

	view, err := s.StartFit(&plan)
	if err != nil {
		s.respondREST(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, view)
}

// handleGetFit handles GET /api/v1/fits/{id}.
func (s *Server) handleGetFit(w http.ResponseWriter, r *http.Request) {
	view, err := s.Status(chi.URLParam(r, "id"))
	if err != nil {
		s.respondREST(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// handleListFits handles GET /api/v1/fits.
func (s *Server) handleListFits(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.jobs.list())
}

// handleCancelFit handles DELETE /api/v1/fits/{id}.
func (s *Server) handleCancelFit(w http.ResponseWriter, r *http.Request) {
	view, err := s.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		s.respondREST(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// handleFamilies handles GET /api/v1/families.
func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"families": fit.Families()})
}
