// Package cron schedules the recurring back-office jobs: sweeping the nota
// inbox and reporting low stock.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/gmsas95/notakopi/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultJobTimeout = 10 * time.Minute

// JobFunc does one run of a job and reports how many units it handled.
type JobFunc func(ctx context.Context) (processed, failed int, err error)

// Job is a named task on a standard five-field cron schedule.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      JobFunc
}

// Recorder receives the outcome of every run.
type Recorder interface {
	RecordJobRun(job string, err error)
}

// EntryInfo describes a scheduled job
type EntryInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev,omitempty"`
}

type entry struct {
	job Job
	id  cron.EntryID
}

// Runner manages scheduled job execution
type Runner struct {
	cron     *cron.Cron
	store    *store.Store
	recorder Recorder
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	jobs    map[string]*entry
	running bool
}

// NewRunner creates a new cron runner. st and recorder may be nil.
func NewRunner(st *store.Store, recorder Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	cl := cronLogger{logger.Sugar()}
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		store:    st,
		recorder: recorder,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*entry),
	}
}

// Add schedules job. Names are unique.
func (r *Runner) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, "cron job needs a name and a run function")
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, fmt.Sprintf("invalid schedule for job %s", job.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("cron job %s already registered", job.Name)
	}

	id, err := r.cron.AddFunc(job.Schedule, func() {
		_, _ = r.execute(r.ctx, job)
	})
	if err != nil {
		return err
	}
	r.jobs[job.Name] = &entry{job: job, id: id}
	return nil
}

// Start starts the cron runner
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("cron runner already running")
	}
	r.running = true
	r.cron.Start()
	r.logger.Info("Cron runner started", zap.Int("jobs", len(r.jobs)))
	return nil
}

// Stop stops scheduling and waits for running jobs to return
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	<-r.cron.Stop().Done()
	r.logger.Info("Cron runner stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Entries lists the registered jobs with their next run times.
func (r *Runner) Entries() []EntryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]EntryInfo, 0, len(r.jobs))
	for name, e := range r.jobs {
		ce := r.cron.Entry(e.id)
		infos = append(infos, EntryInfo{
			Name:     name,
			Schedule: e.job.Schedule,
			Next:     ce.Next,
			Prev:     ce.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RunNow runs a registered job immediately, outside its schedule.
func (r *Runner) RunNow(ctx context.Context, name string) (*store.JobRun, error) {
	r.mu.RLock()
	e, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound.Code, fmt.Sprintf("cron job %s not found", name))
	}
	return r.execute(ctx, e.job)
}

// execute runs job once, recording it in the store when one is set. The
// returned error is the job's own.
func (r *Runner) execute(ctx context.Context, job Job) (*store.JobRun, error) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var run *store.JobRun
	if r.store != nil {
		var err error
		if run, err = r.store.StartJobRun(job.Name, job.Schedule); err != nil {
			r.logger.Error("Failed to record job start", zap.String("job", job.Name), zap.Error(err))
		}
	}

	r.logger.Info("Executing scheduled job", zap.String("job", job.Name))
	start := time.Now()
	processed, failed, runErr := job.Run(ctx)

	if run != nil {
		if err := r.store.FinishJobRun(run, processed, failed, runErr); err != nil {
			r.logger.Error("Failed to record job result", zap.String("job", job.Name), zap.Error(err))
		}
	}
	if r.recorder != nil {
		r.recorder.RecordJobRun(job.Name, runErr)
	}

	if runErr != nil {
		r.logger.Error("Job execution failed",
			zap.String("job", job.Name),
			zap.Int("processed", processed),
			zap.Int("failed", failed),
			zap.Error(runErr),
		)
		return run, runErr
	}
	r.logger.Info("Job completed",
		zap.String("job", job.Name),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	return run, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
