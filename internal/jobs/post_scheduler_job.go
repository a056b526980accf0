package job

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/postdispatch/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultPollInterval = time.Minute

type SchedulerStatus struct {
	Running   bool                 `json:"running"`
	Interval  string               `json:"interval"`
	NextCheck *time.Time           `json:"next_check,omitempty"`
	LastTick  *service.TickSummary `json:"last_tick,omitempty"`
	LastError string               `json:"last_error,omitempty"`
}

// PostSchedulerJob polls for due posts on a fixed interval. A tick that is
// still running when the next one fires causes that one to be skipped.
type PostSchedulerJob struct {
	publisher service.PublishService
	interval  time.Duration
	logger    *zap.Logger

	mu       sync.RWMutex
	cron     *cron.Cron
	job      cron.Job
	entry    cron.EntryID
	running  bool
	lastTick *service.TickSummary
	lastErr  string
}

func NewPostSchedulerJob(publisher service.PublishService, interval time.Duration, logger *zap.Logger) *PostSchedulerJob {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	j := &PostSchedulerJob{
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	j.job = cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)).
		Then(cron.FuncJob(j.tick))
	return j
}

// Start schedules the loop and runs the first tick right away. Calling it
// twice is a no-op.
func (j *PostSchedulerJob) Start() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.cron = cron.New(cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(j.logger))))
	j.entry = j.cron.Schedule(cron.Every(j.interval), j.job)
	j.cron.Start()
	j.running = true
	j.mu.Unlock()

	j.logger.Info("post scheduler started", zap.Duration("interval", j.interval))
	go j.job.Run()
}

// Stop prevents new ticks. The returned context is done once the in-flight
// tick, if any, has finished; that tick is not cancelled.
func (j *PostSchedulerJob) Stop() context.Context {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	j.running = false
	j.logger.Info("post scheduler stopped")
	return j.cron.Stop()
}

func (j *PostSchedulerJob) Status() SchedulerStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := SchedulerStatus{
		Running:   j.running,
		Interval:  j.interval.String(),
		LastError: j.lastErr,
	}
	if j.lastTick != nil {
		tick := *j.lastTick
		st.LastTick = &tick
	}
	if j.running {
		if next := j.cron.Entry(j.entry).Next; !next.IsZero() {
			st.NextCheck = &next
		}
	}
	return st
}

func (j *PostSchedulerJob) tick() {
	if _, err := j.RunOnce(context.Background()); err != nil {
		j.logger.Error("scheduler tick failed", zap.Error(err))
	}
}

// RunOnce processes the currently due posts and records the summary.
func (j *PostSchedulerJob) RunOnce(ctx context.Context) (*service.TickSummary, error) {
	summary, err := j.publisher.ProcessDuePosts(ctx)

	j.mu.Lock()
	j.lastTick = summary
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
	j.mu.Unlock()

	if summary != nil && summary.Due > 0 {
		j.logger.Info("scheduler tick finished",
			zap.Int("due", summary.Due),
			zap.Int("posted", summary.Posted),
			zap.Int("retried", summary.Retried),
			zap.Int("failed", summary.Failed),
			zap.Int("deferred", summary.Deferred),
			zap.Int("skipped", summary.Skipped),
			zap.Int("errors", summary.Errors),
			zap.Duration("duration", summary.Duration))
	}
	return summary, err
}
