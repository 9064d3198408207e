// Package engine is the stateful core: every mutation runs inside a
// single SQL transaction with its audit row, and per-day rebuilds are
// serialized through a lock registry.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dayline/internal/config"
	"dayline/internal/domain"
	"dayline/internal/events"
	"dayline/internal/repo"
	"dayline/internal/schedule"
	"dayline/internal/score"
	"dayline/internal/timeutil"
)

var (
	// ErrDayNotFound means the day does not exist or belongs to another
	// user.
	ErrDayNotFound = errors.New("day not found")
	// ErrConflictingUpdate means another mutation of the same day is in
	// flight; the caller should retry after backoff.
	ErrConflictingUpdate = errors.New("conflicting update in progress")
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Locks  *DayLocks
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Locks:  NewDayLocks(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) rules() schedule.Rules {
	if e.Config != nil {
		if rules, err := e.Config.Rules(); err == nil {
			return rules
		}
	}
	return schedule.DefaultRules()
}

func (e Engine) weights() score.Weights {
	if e.Config != nil {
		return e.Config.Scoring
	}
	return score.DefaultWeights()
}

// DayID derives the deterministic day id for a user and date.
func DayID(userID, date string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(userID+"|"+date)).String()
}

// EnsureDay returns the user's day for a date, creating an empty one on
// first access.
func (e Engine) EnsureDay(ctx context.Context, userID, date, actorID string) (domain.Day, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return domain.Day{}, fmt.Errorf("date %q: %w", date, err)
	}
	d, err := e.Repo.GetDayByDate(ctx, userID, date)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Day{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Day{}, err
	}
	defer tx.Rollback()

	now := e.nowRFC3339()
	d = domain.Day{
		ID:        DayID(userID, date),
		UserID:    userID,
		Date:      date,
		BlockIDs:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertDayTx(ctx, tx, d); err != nil {
		return domain.Day{}, fmt.Errorf("insert day: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "day.created", userID, "day", d.ID, actorID, events.EventPayload{"date": date}); err != nil {
		return domain.Day{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Day{}, err
	}
	return d, nil
}

// LoadDayBlocks returns a day's blocks in index order with their tasks
// attached.
func (e Engine) LoadDayBlocks(ctx context.Context, dayID string) ([]domain.Block, error) {
	blocks, err := e.Repo.ListBlocksByDay(ctx, dayID)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if blocks[i].Tasks, err = e.Repo.ListTasksByBlock(ctx, blocks[i].ID); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

// InsertedBlock is InsertBlock's result: the persisted block plus the
// sibling ids whose index moved up.
type InsertedBlock struct {
	Block   domain.Block
	Shifted []string
}

// InsertBlock places one new block into an existing day without a full
// rebuild. The position comes from the nearest preceding neighbor; an
// overlap does not reject, it flags the block out-of-order for review.
func (e Engine) InsertBlock(ctx context.Context, dayID, userID string, p BlockProposal, actorID string) (InsertedBlock, error) {
	if !e.Locks.TryLock(dayID) {
		return InsertedBlock{}, fmt.Errorf("day %s: %w", dayID, ErrConflictingUpdate)
	}
	defer e.Locks.Unlock(dayID)

	start, end, err := timeutil.Span(p.StartTime, p.EndTime)
	if err != nil {
		return InsertedBlock{}, fmt.Errorf("block %q: %w", p.Name, err)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return InsertedBlock{}, err
	}
	defer tx.Rollback()

	day, err := e.Repo.GetDayTx(ctx, tx, dayID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return InsertedBlock{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
		}
		return InsertedBlock{}, err
	}
	if day.UserID != userID {
		return InsertedBlock{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
	}

	siblings, err := e.Repo.ListBlocksByDayTx(ctx, tx, dayID)
	if err != nil {
		return InsertedBlock{}, err
	}
	placed := make([]schedule.Placed, 0, len(siblings))
	for _, b := range siblings {
		s, en, err := timeutil.Span(b.StartTime, b.EndTime)
		if err != nil {
			return InsertedBlock{}, fmt.Errorf("block %s: %w", b.ID, err)
		}
		placed = append(placed, schedule.Placed{ID: b.ID, Index: b.Index, Start: s, End: en})
	}
	placement := schedule.Place(placed, start, end)

	if err := e.Repo.ShiftBlockIndexesTx(ctx, tx, dayID, placement.Index); err != nil {
		return InsertedBlock{}, err
	}
	now := e.nowRFC3339()
	block, err := e.createBlockTx(ctx, tx, day, p, placement.Index, len(placement.Overlapping) > 0, now)
	if err != nil {
		return InsertedBlock{}, err
	}
	if err := e.Repo.TouchDayTx(ctx, tx, dayID, now); err != nil {
		return InsertedBlock{}, err
	}
	if err := e.Events.Append(ctx, tx, "block.inserted", userID, "block", block.ID, actorID, events.EventPayload{
		"day_id": dayID, "index": placement.Index, "shifted": len(placement.Shifted), "overlapping": placement.Overlapping,
	}); err != nil {
		return InsertedBlock{}, err
	}
	if err := tx.Commit(); err != nil {
		return InsertedBlock{}, err
	}
	block.Tasks, err = e.Repo.ListTasksByBlock(ctx, block.ID)
	if err != nil {
		return InsertedBlock{}, err
	}
	return InsertedBlock{Block: block, Shifted: placement.Shifted}, nil
}

// ValidateDay runs the validation rules over a day's current blocks.
func (e Engine) ValidateDay(ctx context.Context, dayID, userID string) (schedule.Report, error) {
	day, err := e.Repo.GetDay(ctx, dayID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return schedule.Report{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
		}
		return schedule.Report{}, err
	}
	if day.UserID != userID {
		return schedule.Report{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
	}
	blocks, err := e.LoadDayBlocks(ctx, dayID)
	if err != nil {
		return schedule.Report{}, err
	}
	candidates, err := Candidates(blocks)
	if err != nil {
		return schedule.Report{}, err
	}
	return schedule.Validate(candidates, e.rules()), nil
}

// ValidateProposal runs the validation rules over a candidate proposal
// without touching storage, so a client can check a schedule before
// rebuilding with it.
func (e Engine) ValidateProposal(proposal []BlockProposal) (schedule.Report, error) {
	candidates := make([]schedule.Candidate, 0, len(proposal))
	for i, p := range proposal {
		s, en, err := timeutil.Span(p.StartTime, p.EndTime)
		if err != nil {
			return schedule.Report{}, fmt.Errorf("proposal block %d (%s): %w", i, p.Name, err)
		}
		high := false
		for _, t := range p.Tasks {
			if t.Priority == domain.PriorityHigh {
				high = true
				break
			}
		}
		id := p.Name
		if id == "" {
			id = fmt.Sprintf("block-%d", i)
		}
		candidates = append(candidates, schedule.Candidate{
			ID:           id,
			Name:         p.Name,
			Type:         p.Type,
			Start:        s,
			End:          en,
			Difficulty:   p.Difficulty,
			HighPriority: high,
			HasDeadline:  p.Deadline != nil,
		})
	}
	return schedule.Validate(candidates, e.rules()), nil
}

// Candidates converts loaded blocks to the validator's view. A block
// carrying a High-priority task counts as high priority itself.
func Candidates(blocks []domain.Block) ([]schedule.Candidate, error) {
	res := make([]schedule.Candidate, 0, len(blocks))
	for _, b := range blocks {
		s, en, err := timeutil.Span(b.StartTime, b.EndTime)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", b.ID, err)
		}
		high := false
		for _, t := range b.Tasks {
			if t.Priority == domain.PriorityHigh {
				high = true
				break
			}
		}
		res = append(res, schedule.Candidate{
			ID:           b.ID,
			Name:         b.Name,
			Type:         b.Type,
			Start:        s,
			End:          en,
			Difficulty:   b.Difficulty,
			HighPriority: high,
			HasDeadline:  b.Deadline != nil,
		})
	}
	return res, nil
}

// ScoreDay rates a day from its completed blocks and persists the
// rating on the day row.
func (e Engine) ScoreDay(ctx context.Context, dayID, userID, actorID string) (domain.PerformanceRating, error) {
	day, err := e.Repo.GetDay(ctx, dayID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.PerformanceRating{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
		}
		return domain.PerformanceRating{}, err
	}
	if day.UserID != userID {
		return domain.PerformanceRating{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
	}
	blocks, err := e.LoadDayBlocks(ctx, dayID)
	if err != nil {
		return domain.PerformanceRating{}, err
	}
	if blocks == nil {
		blocks = []domain.Block{}
	}
	rating, err := score.Rate(&day, blocks, e.weights())
	if err != nil {
		return domain.PerformanceRating{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PerformanceRating{}, err
	}
	defer tx.Rollback()
	now := e.nowRFC3339()
	if err := e.Repo.SetDayRatingTx(ctx, tx, dayID, &rating, now); err != nil {
		return domain.PerformanceRating{}, err
	}
	// Scoring finalizes the day.
	if err := e.Repo.SetDayCompletedTx(ctx, tx, dayID, true, now); err != nil {
		return domain.PerformanceRating{}, err
	}
	if err := e.Events.Append(ctx, tx, "day.scored", userID, "day", dayID, actorID, events.EventPayload{
		"points": rating.Points, "score": rating.Score, "level": rating.Level,
	}); err != nil {
		return domain.PerformanceRating{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PerformanceRating{}, err
	}
	return rating, nil
}

// SetBlockStatus completes or cancels a block.
func (e Engine) SetBlockStatus(ctx context.Context, blockID, userID, status, actorID string) (domain.Block, error) {
	if status != domain.BlockComplete && status != domain.BlockCancelled && status != domain.BlockPending {
		return domain.Block{}, fmt.Errorf("status %q not allowed", status)
	}
	block, err := e.Repo.GetBlock(ctx, blockID)
	if err != nil {
		return domain.Block{}, err
	}
	day, err := e.Repo.GetDay(ctx, block.DayID)
	if err != nil {
		return domain.Block{}, err
	}
	if day.UserID != userID {
		return domain.Block{}, fmt.Errorf("block %s: %w", blockID, repo.ErrNotFound)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Block{}, err
	}
	defer tx.Rollback()
	now := e.nowRFC3339()
	if err := e.Repo.UpdateBlockStatusTx(ctx, tx, blockID, status, now); err != nil {
		return domain.Block{}, err
	}
	if err := e.Events.Append(ctx, tx, "block."+status, userID, "block", blockID, actorID, nil); err != nil {
		return domain.Block{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Block{}, err
	}
	block.Status = status
	block.UpdatedAt = now
	return block, nil
}

// TaskCreateOptions are parameters for creating a task. BlockID empty
// creates a backlog task.
type TaskCreateOptions struct {
	UserID      string
	BlockID     string
	Name        string
	Description string
	Duration    int
	Priority    string
	ProjectID   string
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Task{}, errors.New("name is required")
	}
	if opts.Priority != "" && opts.Priority != domain.PriorityHigh && opts.Priority != domain.PriorityMedium && opts.Priority != domain.PriorityLow {
		return domain.Task{}, fmt.Errorf("priority %q not allowed", opts.Priority)
	}
	now := e.nowRFC3339()
	t := domain.Task{
		ID:          uuid.NewString(),
		UserID:      opts.UserID,
		Name:        opts.Name,
		Description: opts.Description,
		Duration:    opts.Duration,
		Priority:    opts.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.ProjectID != "" {
		t.ProjectID = &opts.ProjectID
	}
	if opts.BlockID != "" {
		block, err := e.Repo.GetBlock(ctx, opts.BlockID)
		if err != nil {
			return domain.Task{}, fmt.Errorf("block %s: %w", opts.BlockID, err)
		}
		day, err := e.Repo.GetDay(ctx, block.DayID)
		if err != nil {
			return domain.Task{}, err
		}
		if day.UserID != opts.UserID {
			return domain.Task{}, fmt.Errorf("block %s: %w", opts.BlockID, repo.ErrNotFound)
		}
		t.BlockID = &block.ID
		t.DayID = &block.DayID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", opts.UserID, "task", t.ID, opts.ActorID, events.EventPayload{
		"block_id": opts.BlockID,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// MoveTask re-parents a task to another block, or to the backlog when
// blockID is empty. The task never appears in two blocks.
func (e Engine) MoveTask(ctx context.Context, taskID, userID, blockID, actorID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.UserID != userID {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, repo.ErrNotFound)
	}
	dayID := ""
	if blockID != "" {
		block, err := e.Repo.GetBlock(ctx, blockID)
		if err != nil {
			return domain.Task{}, fmt.Errorf("block %s: %w", blockID, err)
		}
		day, err := e.Repo.GetDay(ctx, block.DayID)
		if err != nil {
			return domain.Task{}, err
		}
		if day.UserID != userID {
			return domain.Task{}, fmt.Errorf("block %s: %w", blockID, repo.ErrNotFound)
		}
		dayID = block.DayID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	now := e.nowRFC3339()
	if err := e.Repo.UpdateTaskTx(ctx, tx, taskID, repo.TaskUpdate{BlockID: &blockID, DayID: &dayID}, now); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.moved", userID, "task", taskID, actorID, events.EventPayload{
		"block_id": blockID,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, taskID)
}

// SetTaskCompleted toggles a task's completion flag.
func (e Engine) SetTaskCompleted(ctx context.Context, taskID, userID string, completed bool, actorID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.UserID != userID {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, repo.ErrNotFound)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	now := e.nowRFC3339()
	if err := e.Repo.UpdateTaskTx(ctx, tx, taskID, repo.TaskUpdate{Completed: &completed}, now); err != nil {
		return domain.Task{}, err
	}
	evtType := "task.completed"
	if !completed {
		evtType = "task.reopened"
	}
	if err := e.Events.Append(ctx, tx, evtType, userID, "task", taskID, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Completed = completed
	t.UpdatedAt = now
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, taskID, userID, actorID string) error {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.UserID != userID {
		return fmt.Errorf("task %s: %w", taskID, repo.ErrNotFound)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTaskTx(ctx, tx, taskID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", userID, "task", taskID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
