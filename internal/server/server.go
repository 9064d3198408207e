// Package server exposes the engine over HTTP with huma on chi.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dayline/internal/domain"
	"dayline/internal/engine"
	"dayline/internal/plan"
	"dayline/internal/repo"
	"dayline/internal/schedule"
	"dayline/internal/score"
	"dayline/internal/timeutil"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflicting_update"`
	Message string         `json:"message" example:"day d1: conflicting update in progress"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Dayline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Dayline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDays(group, cfg.Engine)
	registerBlocks(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerCalendar(group, cfg.Engine)
	registerRoutines(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrConflictingUpdate):
		return newAPIError(http.StatusConflict, "conflicting_update", err.Error(), nil)
	case errors.Is(err, engine.ErrDayNotFound), errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, timeutil.ErrInvalidTimeFormat):
		return newAPIError(http.StatusBadRequest, "invalid_time_format", err.Error(), nil)
	case errors.Is(err, score.ErrInvalidDayShape):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, plan.ErrHardConflict):
		return newAPIError(http.StatusUnprocessableEntity, "hard_conflict", err.Error(), nil)
	case errors.Is(err, plan.ErrAuditMismatch), errors.Is(err, plan.ErrIdentityLost):
		return newAPIError(http.StatusUnprocessableEntity, "audit_rejected", err.Error(), nil)
	case errors.Is(err, plan.ErrUnknownInstruction):
		return newAPIError(http.StatusBadRequest, "unknown_instruction", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") || strings.Contains(lowered, "not allowed") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Dayline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string
	}, error) {
		return &struct {
			Body map[string]string
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func loadDayView(ctx context.Context, e engine.Engine, userID, date string) (dayView, error) {
	day, err := e.EnsureDay(ctx, userID, date, userID)
	if err != nil {
		return dayView{}, err
	}
	blocks, err := e.LoadDayBlocks(ctx, day.ID)
	if err != nil {
		return dayView{}, err
	}
	if blocks == nil {
		blocks = []domain.Block{}
	}
	return dayView{Day: day, Blocks: blocks}, nil
}

func registerDays(api huma.API, e engine.Engine) {
	type datePath struct {
		Date string `path:"date" example:"2026-01-05"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "day-get",
		Method:      http.MethodGet,
		Path:        "/days/{date}",
		Summary:     "Get (or lazily create) a day",
	}, func(ctx context.Context, input *datePath) (*struct {
		Body dayView
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := loadDayView(ctx, e, userID, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body dayView
		}{Body: view}, nil
	})

	type rebuildInput struct {
		Date string `path:"date"`
		Body struct {
			Blocks      []blockProposalDTO `json:"blocks"`
			Destructive bool               `json:"destructive,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "day-rebuild",
		Method:      http.MethodPost,
		Path:        "/days/{date}/rebuild",
		Summary:     "Atomically replace a day's schedule",
	}, func(ctx context.Context, input *rebuildInput) (*struct {
		Body dayView
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		for i, b := range input.Body.Blocks {
			for _, t := range b.Tasks {
				if t.ID != "" && t.LocalKey != "" {
					return nil, newAPIError(http.StatusBadRequest, "bad_request",
						fmt.Sprintf("block %d: task sets both id and local_key", i), nil)
				}
			}
		}
		day, err := e.EnsureDay(ctx, userID, input.Date, userID)
		if err != nil {
			return nil, handleError(err)
		}
		if _, err := e.RebuildDay(ctx, day.ID, userID, toProposal(input.Body.Blocks), engine.RebuildOptions{
			Destructive: input.Body.Destructive,
			ActorID:     userID,
		}); err != nil {
			return nil, handleError(err)
		}
		view, err := loadDayView(ctx, e, userID, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body dayView
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "day-validate",
		Method:      http.MethodGet,
		Path:        "/days/{date}/validate",
		Summary:     "Validate a day's current schedule",
	}, func(ctx context.Context, input *datePath) (*struct {
		Body schedule.Report
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		day, err := e.EnsureDay(ctx, userID, input.Date, userID)
		if err != nil {
			return nil, handleError(err)
		}
		report, err := e.ValidateDay(ctx, day.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body schedule.Report
		}{Body: report}, nil
	})

	type validateProposalInput struct {
		Date string `path:"date"`
		Body struct {
			Blocks []blockProposalDTO `json:"blocks"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "day-validate-proposal",
		Method:      http.MethodPost,
		Path:        "/days/{date}/validate",
		Summary:     "Validate a candidate schedule without persisting it",
	}, func(ctx context.Context, input *validateProposalInput) (*struct {
		Body schedule.Report
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		report, err := e.ValidateProposal(toProposal(input.Body.Blocks))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body schedule.Report
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "day-score",
		Method:      http.MethodPost,
		Path:        "/days/{date}/score",
		Summary:     "Score a finalized day and persist the rating",
	}, func(ctx context.Context, input *datePath) (*struct {
		Body domain.PerformanceRating
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		day, err := e.EnsureDay(ctx, userID, input.Date, userID)
		if err != nil {
			return nil, handleError(err)
		}
		rating, err := e.ScoreDay(ctx, day.ID, userID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PerformanceRating
		}{Body: rating}, nil
	})

	type regenerateInput struct {
		Date string `path:"date"`
		Body struct {
			Instruction string `json:"instruction" example:"move b1 to 14:00"`
			Destructive bool   `json:"destructive,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "day-regenerate",
		Method:      http.MethodPost,
		Path:        "/days/{date}/regenerate",
		Summary:     "Rewrite a day's schedule from an instruction",
		Description: "Applies the deterministic shift planner and rejects proposals whose audit is incomplete.",
	}, func(ctx context.Context, input *regenerateInput) (*struct {
		Body engine.RegenerateResult
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		day, err := e.EnsureDay(ctx, userID, input.Date, userID)
		if err != nil {
			return nil, handleError(err)
		}
		rules := schedule.DefaultRules()
		if e.Config != nil {
			if r, rerr := e.Config.Rules(); rerr == nil {
				rules = r
			}
		}
		planner := plan.ShiftPlanner{Rules: rules}
		result, err := e.Regenerate(ctx, day.ID, userID, input.Body.Instruction, planner, engine.RebuildOptions{
			Destructive: input.Body.Destructive,
			ActorID:     userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.RegenerateResult
		}{Body: result}, nil
	})

	type insertInput struct {
		Date string           `path:"date"`
		Body blockProposalDTO
	}
	type insertOutput struct {
		Body struct {
			Block   domain.Block `json:"block"`
			Shifted []string     `json:"shifted"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "day-insert-block",
		Method:      http.MethodPost,
		Path:        "/days/{date}/blocks",
		Summary:     "Insert one block into an existing day",
	}, func(ctx context.Context, input *insertInput) (*insertOutput, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		day, err := e.EnsureDay(ctx, userID, input.Date, userID)
		if err != nil {
			return nil, handleError(err)
		}
		proposal := toProposal([]blockProposalDTO{input.Body})[0]
		inserted, err := e.InsertBlock(ctx, day.ID, userID, proposal, userID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &insertOutput{}
		out.Body.Block = inserted.Block
		out.Body.Shifted = inserted.Shifted
		if out.Body.Shifted == nil {
			out.Body.Shifted = []string{}
		}
		return out, nil
	})
}

func registerBlocks(api huma.API, e engine.Engine) {
	type statusInput struct {
		BlockID string `path:"block_id"`
		Body    struct {
			Status string `json:"status" enum:"pending,complete,cancelled"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "block-status",
		Method:      http.MethodPost,
		Path:        "/blocks/{block_id}/status",
		Summary:     "Complete, cancel, or reopen a block",
	}, func(ctx context.Context, input *statusInput) (*struct {
		Body domain.Block
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		block, err := e.SetBlockStatus(ctx, input.BlockID, userID, input.Body.Status, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Block
		}{Body: block}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	type taskCreateInput struct {
		Body struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
			Duration    int    `json:"duration,omitempty"`
			Priority    string `json:"priority,omitempty" enum:",High,Medium,Low"`
			BlockID     string `json:"block_id,omitempty"`
			ProjectID   string `json:"project_id,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "task-create",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a task, in a block or in the backlog",
	}, func(ctx context.Context, input *taskCreateInput) (*struct {
		Body domain.Task
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			UserID:      userID,
			BlockID:     input.Body.BlockID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Duration:    input.Body.Duration,
			Priority:    input.Body.Priority,
			ProjectID:   input.Body.ProjectID,
			ActorID:     userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task
		}{Body: task}, nil
	})

	type listInput struct {
		Backlog bool `query:"backlog" doc:"Only unscheduled tasks"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "task-list",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *listInput) (*struct {
		Body []domain.Task
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var (
			tasks []domain.Task
			err   error
		)
		if input.Backlog {
			tasks, err = e.Repo.ListBacklogTasks(ctx, userID)
		} else {
			tasks, err = e.Repo.ListTasksByUser(ctx, userID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return &struct {
			Body []domain.Task
		}{Body: tasks}, nil
	})

	type moveInput struct {
		TaskID string `path:"task_id"`
		Body   struct {
			BlockID string `json:"block_id" doc:"Empty detaches the task to the backlog"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "task-move",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/move",
		Summary:     "Re-parent a task to a block or the backlog",
	}, func(ctx context.Context, input *moveInput) (*struct {
		Body domain.Task
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.MoveTask(ctx, input.TaskID, userID, input.Body.BlockID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task
		}{Body: task}, nil
	})

	type completeInput struct {
		TaskID string `path:"task_id"`
		Body   struct {
			Completed bool `json:"completed"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "task-complete",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Mark a task complete or reopen it",
	}, func(ctx context.Context, input *completeInput) (*struct {
		Body domain.Task
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.SetTaskCompleted(ctx, input.TaskID, userID, input.Body.Completed, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task
		}{Body: task}, nil
	})

	type deleteInput struct {
		TaskID string `path:"task_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID:   "task-delete",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete a task",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *deleteInput) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.TaskID, userID, userID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerCalendar(api huma.API, e engine.Engine) {
	type eventCreateInput struct {
		Body struct {
			ID          string  `json:"id,omitempty"`
			Name        string  `json:"name"`
			Date        string  `json:"date" example:"2026-01-05"`
			StartTime   string  `json:"start_time"`
			EndTime     string  `json:"end_time"`
			Location    string  `json:"location,omitempty"`
			MeetingLink *string `json:"meeting_link,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "calendar-event-create",
		Method:      http.MethodPost,
		Path:        "/events",
		Summary:     "Create a calendar event",
	}, func(ctx context.Context, input *eventCreateInput) (*struct {
		Body domain.CalendarEvent
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		evt := domain.CalendarEvent{
			ID:          input.Body.ID,
			UserID:      userID,
			Name:        input.Body.Name,
			Date:        input.Body.Date,
			StartTime:   input.Body.StartTime,
			EndTime:     input.Body.EndTime,
			Location:    input.Body.Location,
			MeetingLink: input.Body.MeetingLink,
			CreatedAt:   nowRFC3339(e),
		}
		if evt.ID == "" {
			evt.ID = uuid.NewString()
		}
		created, err := e.CreateCalendarEvent(ctx, evt, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalendarEvent
		}{Body: created}, nil
	})
}

func registerRoutines(api huma.API, e engine.Engine) {
	type routineTaskDTO struct {
		Name     string `json:"name"`
		Duration int    `json:"duration,omitempty"`
		Priority string `json:"priority,omitempty" enum:",High,Medium,Low"`
		Type     string `json:"type,omitempty"`
	}
	type routineCreateInput struct {
		Body struct {
			ID        string           `json:"id,omitempty"`
			Name      string           `json:"name"`
			StartTime string           `json:"start_time"`
			EndTime   string           `json:"end_time"`
			Days      []string         `json:"days,omitempty"`
			Tasks     []routineTaskDTO `json:"tasks,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "routine-create",
		Method:      http.MethodPost,
		Path:        "/routines",
		Summary:     "Create a routine template",
	}, func(ctx context.Context, input *routineCreateInput) (*struct {
		Body domain.Routine
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rt := domain.Routine{
			ID:        input.Body.ID,
			UserID:    userID,
			Name:      input.Body.Name,
			StartTime: input.Body.StartTime,
			EndTime:   input.Body.EndTime,
			Days:      input.Body.Days,
			CreatedAt: nowRFC3339(e),
		}
		if rt.ID == "" {
			rt.ID = uuid.NewString()
		}
		for i, t := range input.Body.Tasks {
			rt.Tasks = append(rt.Tasks, domain.RoutineTask{
				ID:        fmt.Sprintf("%s-%d", rt.ID, i),
				RoutineID: rt.ID,
				Name:      t.Name,
				Duration:  t.Duration,
				Priority:  t.Priority,
				Type:      t.Type,
			})
		}
		created, err := e.CreateRoutine(ctx, rt, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Routine
		}{Body: created}, nil
	})

	type stampInput struct {
		Date string `path:"date"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "routine-stamp",
		Method:      http.MethodPost,
		Path:        "/routines/stamp/{date}",
		Summary:     "Stamp due routines into a day",
	}, func(ctx context.Context, input *stampInput) (*struct {
		Body map[string]int
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.StampRoutines(ctx, userID, input.Date, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int
		}{Body: map[string]int{"stamped": n}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	type listInput struct {
		Limit int `query:"limit" default:"50"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "log-list",
		Method:      http.MethodGet,
		Path:        "/log",
		Summary:     "List audit log entries, newest first",
	}, func(ctx context.Context, input *listInput) (*struct {
		Body []domain.ChangeEvent
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		events, err := e.Repo.ListEvents(ctx, userID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if events == nil {
			events = []domain.ChangeEvent{}
		}
		return &struct {
			Body []domain.ChangeEvent
		}{Body: events}, nil
	})
}

func nowRFC3339(e engine.Engine) string {
	now := e.Now
	if now == nil {
		return ""
	}
	return now().UTC().Format("2006-01-02T15:04:05Z07:00")
}
