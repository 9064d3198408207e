package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"dayline/internal/engine"
	"dayline/internal/timeutil"
)

// Scheduler enqueues recurring jobs on a cron timetable.
type Scheduler struct {
	cron  *cron.Cron
	queue *Queue
}

func NewScheduler(q *Queue) *Scheduler {
	return &Scheduler{cron: cron.New(), queue: q}
}

// Daily enqueues the job every day at the given wall-clock time.
func (s *Scheduler) Daily(at string, job Job) error {
	minutes, err := timeutil.ToMinutes(at)
	if err != nil {
		return err
	}
	spec := fmt.Sprintf("%d %d * * *", minutes%60, minutes/60)
	_, err = s.cron.AddFunc(spec, func() {
		if err := s.queue.Enqueue(job); err != nil {
			s.queue.Logf("schedule %s: %v", job.Kind, err)
		}
	})
	return err
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the timetable; queued jobs keep running.
func (s *Scheduler) Stop() { s.cron.Stop() }

// RoutineStampJob builds the daily generation job: stamp the user's
// routines into today's schedule.
func RoutineStampJob(eng engine.Engine, userID string) Job {
	return Job{
		Kind: "routine.stamp",
		Run: func(ctx context.Context) error {
			now := time.Now
			if eng.Now != nil {
				now = eng.Now
			}
			date := now().UTC().Format("2006-01-02")
			_, err := eng.StampRoutines(ctx, userID, date, "scheduler")
			return err
		},
	}
}
