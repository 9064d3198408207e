package server

import (
	"dayline/internal/domain"
	"dayline/internal/engine"
)

// blockProposalDTO is the wire form of one proposed block.
type blockProposalDTO struct {
	Name        string            `json:"name,omitempty"`
	StartTime   string            `json:"start_time" example:"09:00"`
	EndTime     string            `json:"end_time" example:"10:30"`
	Type        string            `json:"type,omitempty" enum:",deep-work,admin,break,meeting,personal,event,routine"`
	Status      string            `json:"status,omitempty" enum:",pending,complete,cancelled"`
	Difficulty  string            `json:"difficulty,omitempty"`
	EventID     *string           `json:"event_id,omitempty"`
	RoutineID   *string           `json:"routine_id,omitempty"`
	MeetingLink *string           `json:"meeting_link,omitempty"`
	Deadline    *string           `json:"deadline,omitempty"`
	Tasks       []taskProposalDTO `json:"tasks,omitempty"`
}

// taskProposalDTO references a persisted task by id or describes a new
// one under a client-local key. Setting both is rejected.
type taskProposalDTO struct {
	ID          string  `json:"id,omitempty"`
	LocalKey    string  `json:"local_key,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Duration    int     `json:"duration,omitempty"`
	Priority    string  `json:"priority,omitempty" enum:",High,Medium,Low"`
	ProjectID   *string `json:"project_id,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

func (t taskProposalDTO) ref() domain.TaskRef {
	if t.ID != "" {
		return domain.PersistedTask(t.ID)
	}
	if t.LocalKey != "" {
		return domain.DraftTask(t.LocalKey)
	}
	return domain.NoTask()
}

func toProposal(blocks []blockProposalDTO) []engine.BlockProposal {
	res := make([]engine.BlockProposal, 0, len(blocks))
	for _, b := range blocks {
		p := engine.BlockProposal{
			Name:        b.Name,
			StartTime:   b.StartTime,
			EndTime:     b.EndTime,
			Type:        b.Type,
			Status:      b.Status,
			Difficulty:  b.Difficulty,
			EventID:     b.EventID,
			RoutineID:   b.RoutineID,
			MeetingLink: b.MeetingLink,
			Deadline:    b.Deadline,
		}
		for _, t := range b.Tasks {
			p.Tasks = append(p.Tasks, engine.TaskProposal{
				Ref:         t.ref(),
				Name:        t.Name,
				Description: t.Description,
				Duration:    t.Duration,
				Priority:    t.Priority,
				ProjectID:   t.ProjectID,
				Completed:   t.Completed,
			})
		}
		res = append(res, p)
	}
	return res
}

// dayView is a day with its blocks and tasks loaded.
type dayView struct {
	Day    domain.Day     `json:"day"`
	Blocks []domain.Block `json:"blocks"`
}
