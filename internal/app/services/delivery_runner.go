package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
)

// keptRuns bounds the run history kept for status polling
const keptRuns = 20

// DeliveryRunner starts delivery runs in the background and keeps their
// status. At most one run is active per process.
type DeliveryRunner struct {
	service *DeliveryService
	logger  zerolog.Logger

	mu     sync.Mutex
	runs   map[string]*dto.DeliveryRun
	order  []string
	active string
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// NewDeliveryRunner creates a new DeliveryRunner
func NewDeliveryRunner(service *DeliveryService, logger zerolog.Logger) *DeliveryRunner {
	return &DeliveryRunner{
		service: service,
		logger:  logger,
		runs:    make(map[string]*dto.DeliveryRun),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Start launches a run detached from ctx cancellation and returns its
// initial status. ErrDeliveryInProgress is returned while another run holds
// the delivery lock, here or in another process.
func (r *DeliveryRunner) Start(ctx context.Context) (*dto.DeliveryRun, error) {
	r.mu.Lock()
	if r.active != "" {
		r.mu.Unlock()
		return nil, apperrors.ErrDeliveryInProgress
	}

	runCtx := context.WithoutCancel(ctx)
	lease, err := r.service.acquire(runCtx)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	run := &dto.DeliveryRun{
		RunID:     r.newID(),
		Status:    dto.RunRunning,
		StartedAt: r.now(),
	}
	r.remember(run)
	r.active = run.RunID
	r.wg.Add(1)
	snapshot := *run
	r.mu.Unlock()

	logger := r.logger.With().Str("runID", run.RunID).Logger()
	logger.Info().Msg("Delivery run started")

	go func() {
		defer r.wg.Done()
		defer r.service.release(runCtx, lease)

		var (
			report *dto.DeliveryReport
			err    error
		)
		func() {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("delivery run panicked: %v", p)
				}
			}()
			report, err = r.service.run(runCtx, lease)
		}()

		if err != nil {
			logger.Error().Err(err).Msg("Delivery run failed")
		}
		r.finish(run.RunID, report, err)
	}()

	return &snapshot, nil
}

// remember stores run and drops the oldest finished runs. Callers hold mu.
func (r *DeliveryRunner) remember(run *dto.DeliveryRun) {
	r.runs[run.RunID] = run
	r.order = append(r.order, run.RunID)
	for len(r.order) > keptRuns {
		oldest := r.order[0]
		if oldest == r.active {
			break
		}
		delete(r.runs, oldest)
		r.order = r.order[1:]
	}
}

func (r *DeliveryRunner) finish(runID string, report *dto.DeliveryReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	finishedAt := r.now()
	if run, ok := r.runs[runID]; ok {
		run.FinishedAt = &finishedAt
		run.Report = report
		if err != nil {
			run.Status = dto.RunFailed
			run.Error = err.Error()
		} else {
			run.Status = dto.RunCompleted
		}
	}
	if r.active == runID {
		r.active = ""
	}
}

// Get returns a copy of the status of a run
func (r *DeliveryRunner) Get(runID string) (*dto.DeliveryRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, apperrors.ErrDeliveryRunUnknown
	}
	snapshot := *run
	return &snapshot, nil
}

// Wait blocks until no run is active or ctx is done
func (r *DeliveryRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("delivery run still in progress: %w", ctx.Err())
	}
}
