package exporter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	errs "knexport/pkg/errors"
	"knexport/pkg/kidsnote"
	"knexport/pkg/logger"
)

// Response is the reply to a command.
type Response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Code is the error type of a failed command
	Code string `json:"code,omitempty"`
}

func okResponse(format string, args ...interface{}) Response {
	return Response{OK: true, Message: fmt.Sprintf(format, args...)}
}

func errorResponse(err error) Response {
	return Response{Error: err.Error(), Code: string(errs.TypeOf(err))}
}

// Service is the command surface: at most one run is active at a time.
type Service struct {
	controller *Controller
	logger     logger.Logger

	// OnFinish, when set, is called after every run with its result
	OnFinish func(run *Run, err error)

	running atomic.Bool

	mu      sync.Mutex
	current *Run
	done    chan struct{}
	err     error
}

// NewService wraps a controller
func NewService(controller *Controller, log logger.Logger) *Service {
	return &Service{
		controller: controller,
		logger:     logger.OrDefault(log).WithField("component", "service"),
	}
}

// Prepare checks that discovery succeeds for kind before an export is started.
func (s *Service) Prepare(ctx context.Context, kind kidsnote.Kind) Response {
	info, err := s.controller.Locate(ctx, kind)
	if err != nil {
		return errorResponse(err)
	}
	return okResponse("%s endpoint ready for child %s", kind.Label(), info.ChildID)
}

// Start validates filters and launches a run in the background. A start
// while another run is active is rejected and leaves that run untouched.
func (s *Service) Start(ctx context.Context, kind kidsnote.Kind, root string, filters Filters) Response {
	if err := filters.Validate(); err != nil {
		return errorResponse(err)
	}
	if !s.running.CompareAndSwap(false, true) {
		return errorResponse(errs.New(errs.ErrorTypeAlreadyRunning, "start", "an export is already running"))
	}

	run := NewRun(kind, root, filters)
	done := make(chan struct{})

	s.mu.Lock()
	s.current = run
	s.done = done
	s.err = nil
	s.mu.Unlock()

	go s.execute(ctx, run, done)
	return okResponse("%s export started (run %s)", kind.Label(), run.ID)
}

func (s *Service) execute(ctx context.Context, run *Run, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)

	err := s.controller.Run(ctx, run)
	if err != nil && run.Summary() == "" {
		// Setup failed before the walk began; publish what there is.
		run.fail(err)
		summary := Summary(run, time.Since(run.StartedAt), false, err)
		run.finish(summary, false)
		st := s.controller.Status()
		if perr := st.SetProgress(failureLine(err)); perr != nil {
			s.logger.WithError(perr).Warn("failed to persist status")
		}
		if perr := st.SetFinal(summary); perr != nil {
			s.logger.WithError(perr).Warn("failed to persist status")
		}
		s.logger.WithError(err).WithField("run_id", run.ID).Error("export aborted")
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	if s.OnFinish != nil {
		s.OnFinish(run, err)
	}
}

// Stop asks the active run to halt at its next boundary.
func (s *Service) Stop() Response {
	run := s.Current()
	if run == nil || !s.running.Load() {
		return Response{Error: "no export is running", Code: string(errs.ErrorTypeValidation)}
	}
	run.RequestStop()
	return okResponse("stop requested; the current download will finish first")
}

// Running reports whether a run is active.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Current returns the active or most recent run.
func (s *Service) Current() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Wait blocks until the most recently started run finishes and returns it
// with its error. It returns immediately when nothing was started.
func (s *Service) Wait() (*Run, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil, nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.err
}
