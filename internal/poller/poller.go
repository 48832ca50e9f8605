// Package poller tracks asynchronous backend jobs until they reach a terminal status.
package poller

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/model"
)

var ErrEmptyJobID = errors.New("job id is required")

// StatusSource answers job-status queries.
type StatusSource interface {
	GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusReport, error)
}

// Poller polls one job at a time.
type Poller struct {
	source   StatusSource
	interval time.Duration
	step     int
	cap      int
	log      zerolog.Logger
}

func New(source StatusSource, cfg config.PollerConfig, log zerolog.Logger) *Poller {
	p := &Poller{
		source:   source,
		interval: cfg.Interval,
		step:     cfg.ProgressStep,
		cap:      cfg.ProgressCap,
		log:      log.With().Str("component", "poller").Logger(),
	}
	if p.interval <= 0 {
		p.interval = 5 * time.Second
	}
	if p.step <= 0 {
		p.step = 10
	}
	if p.cap <= 0 || p.cap > 100 {
		p.cap = 95
	}
	return p
}

// NextProgress synthesizes progress for a running job that reports none.
func NextProgress(prev, step, cap int) int {
	next := prev + step
	if next > cap {
		next = cap
	}
	if next < prev {
		next = prev
	}
	return next
}

// Track queries the job immediately and then once per interval. The returned channel
// yields one update per successful query and is closed after a terminal update or when
// ctx is done. A new job needs a new Track call.
func (p *Poller) Track(ctx context.Context, jobID string) (<-chan model.JobUpdate, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrEmptyJobID
	}

	out := make(chan model.JobUpdate)
	go p.run(ctx, jobID, out)
	return out, nil
}

func (p *Poller) run(ctx context.Context, jobID string, out chan<- model.JobUpdate) {
	defer close(out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	progress := 0
	for {
		if update, ok := p.poll(ctx, jobID, progress); ok {
			progress = update.Progress
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
			if update.Terminal {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one query. A failure counts as no new information.
func (p *Poller) poll(ctx context.Context, jobID string, prev int) (model.JobUpdate, bool) {
	report, err := p.source.GetJobStatus(ctx, jobID)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn().Err(err).Str("job_id", jobID).Msg("job status poll failed, retrying next tick")
		}
		return model.JobUpdate{}, false
	}
	if report == nil {
		return model.JobUpdate{}, false
	}

	status := model.ParseJobStatus(report.Status)
	update := model.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Message:  report.Message,
		Terminal: status.Terminal(),
	}

	switch status {
	case model.JobCompleted:
		update.Progress = 100
	case model.JobCancelled:
		update.Progress = 0
	case model.JobFailed:
		update.Progress = prev
		if report.Error != "" {
			update.Message = report.Error
		}
	default:
		if report.Progress != nil {
			update.Progress = clamp(*report.Progress, prev, 100)
		} else {
			update.Progress = NextProgress(prev, p.step, p.cap)
		}
	}
	return update, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
