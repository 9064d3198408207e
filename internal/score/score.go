// Package score turns a finalized day into a performance rating. Rate is
// pure arithmetic over the loaded blocks and their tasks; it never reads
// storage and never mutates its input.
package score

import (
	"errors"
	"fmt"

	"dayline/internal/domain"
)

// ErrInvalidDayShape is returned when the input is structurally unusable
// for scoring, such as a nil day or a missing block list.
var ErrInvalidDayShape = errors.New("invalid day shape")

// Weights are the point values Rate accumulates, overridable from
// config. The score thresholds and level names are fixed.
type Weights struct {
	BlockBase       int `yaml:"block_base" json:"block_base"`
	EventBlockBonus int `yaml:"event_block_bonus" json:"event_block_bonus"`
	// PerfectBlockPerTask points per task, capped at PerfectBlockCap,
	// awarded when every task in a completed block is itself completed.
	PerfectBlockPerTask int `yaml:"perfect_block_per_task" json:"perfect_block_per_task"`
	PerfectBlockCap     int `yaml:"perfect_block_cap" json:"perfect_block_cap"`

	TaskBase       int `yaml:"task_base" json:"task_base"`
	HighPriority   int `yaml:"high_priority" json:"high_priority"`
	MediumPriority int `yaml:"medium_priority" json:"medium_priority"`
	LowPriority    int `yaml:"low_priority" json:"low_priority"`
	ProjectTask    int `yaml:"project_task" json:"project_task"`

	RoutineRateBonus      int `yaml:"routine_rate_bonus" json:"routine_rate_bonus"`
	HighPriorityRateBonus int `yaml:"high_priority_rate_bonus" json:"high_priority_rate_bonus"`
	BlockRateBonus        int `yaml:"block_rate_bonus" json:"block_rate_bonus"`

	RateThreshold float64 `yaml:"rate_threshold" json:"rate_threshold"`
}

// DefaultWeights returns the stock point values.
func DefaultWeights() Weights {
	return Weights{
		BlockBase:             5,
		EventBlockBonus:       8,
		PerfectBlockPerTask:   2,
		PerfectBlockCap:       10,
		TaskBase:              8,
		HighPriority:          10,
		MediumPriority:        5,
		LowPriority:           2,
		ProjectTask:           8,
		RoutineRateBonus:      20,
		HighPriorityRateBonus: 25,
		BlockRateBonus:        30,
		RateThreshold:         0.8,
	}
}

// scoreThresholds maps accumulated points to a 0-10 score: the highest
// score whose threshold the points meet wins.
var scoreThresholds = []struct {
	Score  int
	Points int
}{
	{10, 400}, {9, 350}, {8, 300}, {7, 250}, {6, 200},
	{5, 150}, {4, 100}, {3, 75}, {2, 50}, {1, 25}, {0, 0},
}

func levelFor(score int) string {
	switch {
	case score >= 9:
		return "Outstanding"
	case score >= 7:
		return "Excelling"
	case score >= 5:
		return "On Track"
	case score >= 3:
		return "Making Progress"
	default:
		return "Getting Started"
	}
}

// Rate scores a finalized day. Only blocks with status complete earn
// points; tasks count only when they sit inside a completed block.
// Cancelled blocks are excluded from the completion-rate denominator so
// an explicitly dropped block does not drag the rating down. A day with
// no completed blocks gets the fixed baseline.
func Rate(day *domain.Day, blocks []domain.Block, w Weights) (domain.PerformanceRating, error) {
	if day == nil {
		return domain.PerformanceRating{}, fmt.Errorf("rate: nil day: %w", ErrInvalidDayShape)
	}
	if blocks == nil {
		return domain.PerformanceRating{}, fmt.Errorf("rate day %s: missing block list: %w", day.ID, ErrInvalidDayShape)
	}

	var m domain.RatingMetrics
	points := 0
	for _, b := range blocks {
		if b.Status == domain.BlockCancelled {
			continue
		}
		m.TotalBlocks++
		if b.Status != domain.BlockComplete {
			continue
		}
		m.CompletedBlocks++
		points += w.BlockBase
		if b.EventID != nil {
			points += w.EventBlockBonus
		}

		allDone := len(b.Tasks) > 0
		for _, t := range b.Tasks {
			if t.IsRoutineTask {
				m.TotalRoutineTasks++
			}
			if t.Priority == domain.PriorityHigh {
				m.TotalHighPriorityTasks++
			}
			if !t.Completed {
				allDone = false
				continue
			}
			points += w.TaskBase
			switch t.Priority {
			case domain.PriorityHigh:
				points += w.HighPriority
				m.CompletedHighPriorityTasks++
			case domain.PriorityMedium:
				points += w.MediumPriority
			case domain.PriorityLow:
				points += w.LowPriority
			}
			if t.ProjectID != nil {
				points += w.ProjectTask
				m.CompletedProjectTasks++
			}
			if t.IsRoutineTask {
				m.CompletedRoutineTasks++
			}
		}
		if allDone {
			bonus := w.PerfectBlockPerTask * len(b.Tasks)
			if bonus > w.PerfectBlockCap {
				bonus = w.PerfectBlockCap
			}
			points += bonus
		}
	}

	if m.CompletedBlocks == 0 {
		return domain.PerformanceRating{
			Level:   "Getting Started",
			Comment: baselineComment(m),
			Metrics: m,
		}, nil
	}

	if m.TotalRoutineTasks > 0 && rate(m.CompletedRoutineTasks, m.TotalRoutineTasks) >= w.RateThreshold {
		points += w.RoutineRateBonus
	}
	if m.TotalHighPriorityTasks > 0 && rate(m.CompletedHighPriorityTasks, m.TotalHighPriorityTasks) >= w.RateThreshold {
		points += w.HighPriorityRateBonus
	}
	if rate(m.CompletedBlocks, m.TotalBlocks) >= w.RateThreshold {
		points += w.BlockRateBonus
	}

	sc := 0
	for _, th := range scoreThresholds {
		if points >= th.Points {
			sc = th.Score
			break
		}
	}

	return domain.PerformanceRating{
		Level:   levelFor(sc),
		Score:   sc,
		Points:  points,
		Comment: comment(points, m),
		Metrics: m,
	}, nil
}

func rate(done, total int) float64 {
	return float64(done) / float64(total)
}

func baselineComment(m domain.RatingMetrics) string {
	if m.TotalBlocks == 0 {
		return "No blocks scheduled yet. Plan your day to get going."
	}
	return fmt.Sprintf("0 of %d blocks completed. Every day is a fresh start.", m.TotalBlocks)
}

func comment(points int, m domain.RatingMetrics) string {
	s := fmt.Sprintf("You earned %d points completing %d of %d blocks.",
		points, m.CompletedBlocks, m.TotalBlocks)
	if m.TotalHighPriorityTasks > 0 {
		s += fmt.Sprintf(" High-priority tasks: %d%% done.",
			100*m.CompletedHighPriorityTasks/m.TotalHighPriorityTasks)
	}
	if m.CompletedProjectTasks > 0 {
		s += fmt.Sprintf(" You advanced projects with %d tasks.", m.CompletedProjectTasks)
	}
	switch r := rate(m.CompletedBlocks, m.TotalBlocks); {
	case r < 0.3:
		s += " Every day is a fresh start."
	case r < 0.7:
		s += " Solid progress, keep the momentum."
	default:
		s += " Outstanding consistency."
	}
	return s
}
