package domain

// Block status values.
const (
	BlockPending   = "pending"
	BlockComplete  = "complete"
	BlockCancelled = "cancelled"
)

// Block type values. Task type tags mirror these for scheduling heuristics.
const (
	TypeDeepWork = "deep-work"
	TypeAdmin    = "admin"
	TypeBreak    = "break"
	TypeMeeting  = "meeting"
	TypePersonal = "personal"
	TypeEvent    = "event"
	TypeRoutine  = "routine"
)

// Task priority values.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Day is the root aggregate for one user's one calendar date. Its block
// list is the set of blocks pointing at it, ordered by dense index.
type Day struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Date      string             `json:"date" format:"date"`
	BlockIDs  []string           `json:"block_ids"`
	Completed bool               `json:"completed"`
	Rating    *PerformanceRating `json:"rating,omitempty"`
	CreatedAt string             `json:"created_at" format:"date-time"`
	UpdatedAt string             `json:"updated_at" format:"date-time"`
}

// Block is a contiguous named time span within a Day.
// Index is unique and dense (0..N-1) within the day after every
// successful mutation. OutOfOrder marks a documented conflict where the
// block coexists with an overlapping sibling instead of being resorted.
type Block struct {
	ID          string   `json:"id"`
	DayID       string   `json:"day_id"`
	Name        string   `json:"name"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Status      string   `json:"status" enum:"pending,complete,cancelled"`
	Type        string   `json:"type" enum:"deep-work,admin,break,meeting,personal,event,routine"`
	Index       int      `json:"index"`
	Difficulty  string   `json:"difficulty,omitempty"`
	EventID     *string  `json:"event_id,omitempty"`
	RoutineID   *string  `json:"routine_id,omitempty"`
	MeetingLink *string  `json:"meeting_link,omitempty"`
	Deadline    *string  `json:"deadline,omitempty" format:"date-time"`
	OutOfOrder  bool     `json:"out_of_order,omitempty"`
	TaskIDs     []string `json:"task_ids"`
	Tasks       []Task   `json:"tasks,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

// Task is a unit of work, optionally nested inside a Block. A task with
// nil DayID and BlockID lives in the backlog.
type Task struct {
	ID                    string  `json:"id"`
	UserID                string  `json:"user_id"`
	DayID                 *string `json:"day_id,omitempty"`
	BlockID               *string `json:"block_id,omitempty"`
	ProjectID             *string `json:"project_id,omitempty"`
	RoutineID             *string `json:"routine_id,omitempty"`
	EventID               *string `json:"event_id,omitempty"`
	Name                  string  `json:"name"`
	Description           string  `json:"description,omitempty"`
	Duration              int     `json:"duration"`
	Priority              string  `json:"priority" enum:"High,Medium,Low"`
	Type                  string  `json:"type,omitempty"`
	Completed             bool    `json:"completed"`
	IsRoutineTask         bool    `json:"is_routine_task"`
	OriginalRoutineTaskID *string `json:"original_routine_task_id,omitempty"`
	CreatedAt             string  `json:"created_at" format:"date-time"`
	UpdatedAt             string  `json:"updated_at" format:"date-time"`
}

// CalendarEvent is an externally fixed-time commitment that a Block may
// represent. The engine reads it and back-links the instantiated block.
type CalendarEvent struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Date        string  `json:"date" format:"date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Location    string  `json:"location,omitempty"`
	MeetingLink *string `json:"meeting_link,omitempty"`
	BlockID     *string `json:"block_id,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Routine is a recurring template that stamps out fresh task instances
// into generated blocks. Days lists lowercase weekday names; empty means
// every day.
type Routine struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Name      string        `json:"name"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
	Days      []string      `json:"days,omitempty"`
	Tasks     []RoutineTask `json:"tasks,omitempty"`
	CreatedAt string        `json:"created_at" format:"date-time"`
}

type RoutineTask struct {
	ID        string `json:"id"`
	RoutineID string `json:"routine_id"`
	Name      string `json:"name"`
	Duration  int    `json:"duration"`
	Priority  string `json:"priority" enum:"High,Medium,Low"`
	Type      string `json:"type,omitempty"`
}

// PerformanceRating is the scoring engine's output for a finalized day.
type PerformanceRating struct {
	Level   string        `json:"level"`
	Score   int           `json:"score"`
	Points  int           `json:"points"`
	Comment string        `json:"comment"`
	Metrics RatingMetrics `json:"metrics"`
}

type RatingMetrics struct {
	CompletedHighPriorityTasks int `json:"completed_high_priority_tasks"`
	TotalHighPriorityTasks     int `json:"total_high_priority_tasks"`
	CompletedRoutineTasks      int `json:"completed_routine_tasks"`
	TotalRoutineTasks          int `json:"total_routine_tasks"`
	CompletedProjectTasks      int `json:"completed_project_tasks"`
	CompletedBlocks            int `json:"completed_blocks"`
	TotalBlocks                int `json:"total_blocks"`
}

// ChangeEvent is an append-only audit log row.
type ChangeEvent struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
