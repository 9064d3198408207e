package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dayline/internal/app"
	"dayline/internal/config"
	"dayline/internal/db"
	"dayline/internal/domain"
	"dayline/internal/engine"
	"dayline/internal/jobs"
	"dayline/internal/migrate"
	"dayline/internal/plan"
	"dayline/internal/repo"
	"dayline/internal/schedule"
	"dayline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "Dayline CLI",
	Long: `Dayline plans one day at a time as an ordered list of time blocks.
Core concepts:
- Day: one calendar date per user, created lazily on first touch.
- Blocks: named time spans (deep-work, admin, break, meeting, personal, event, routine)
  kept in a dense order; an overlapping insert is flagged out-of-order, never rejected.
- Tasks: units of work living inside a block or in the backlog, never in two blocks.
- Rebuild: 'dl day rebuild' atomically replaces a day's schedule; old tasks go back
  to the backlog unless you pass --destructive.
- Routines: recurring templates stamped into the day as blocks with fresh task copies.
- Events: fixed external commitments a block can represent and back-link.
- Validation: 'dl validate' reports overlap conflicts and capacity advisories.
- Scoring: 'dl day score' rates a finished day and stores the result.
- Event log: diary of changes, view with 'dl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DAYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "", "user id (overrides dayline.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(dayCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(blockCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(routineCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
}

func initCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Config %s already exists, leaving it alone.\n", path)
				return nil
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(userID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Initialized workspace: %s and %s\n", db.Path(workspace), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "local-user", "user id to seed in dayline.yml")
	return cmd
}

func dayCmd() *cobra.Command {
	day := &cobra.Command{
		Use:   "day",
		Short: "Manage days",
		Long:  "A day is the root aggregate: an ordered list of blocks for one date. Days come to exist lazily, so 'dl day show <date>' never fails on a fresh date.",
	}
	day.AddCommand(dayShowCmd())
	day.AddCommand(dayListCmd())
	day.AddCommand(dayRebuildCmd())
	day.AddCommand(dayScoreCmd())
	day.AddCommand(dayRegenerateCmd())
	return day
}

func dayShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <date>",
		Short: "Show a day's schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				day, err := e.EnsureDay(ctx, userID, date, userID)
				if err != nil {
					return err
				}
				blocks, err := e.LoadDayBlocks(ctx, day.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"day": day, "blocks": blocks})
				}
				fmt.Printf("Day %s (%s)", day.Date, day.ID)
				if day.Rating != nil {
					fmt.Printf("  score %d/10 (%s)", day.Rating.Score, day.Rating.Level)
				}
				fmt.Println()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Time", "Name", "Type", "Status", "Tasks", "Flags"})
				for _, b := range blocks {
					flags := ""
					if b.OutOfOrder {
						flags = "out-of-order"
					}
					tw.AppendRow(table.Row{b.Index, b.StartTime + "-" + b.EndTime, b.Name, b.Type, b.Status, len(b.Tasks), flags})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func dayListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				days, err := e.Repo.ListDays(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(days)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Blocks", "Completed", "Score"})
				for _, d := range days {
					score := ""
					if d.Rating != nil {
						score = fmt.Sprintf("%d/10 (%s)", d.Rating.Score, d.Rating.Level)
					}
					tw.AppendRow(table.Row{d.Date, len(d.BlockIDs), d.Completed, score})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// blockFileEntry is the JSON shape 'dl day rebuild --file' reads. A task
// either names a persisted id to re-parent or describes a draft.
type blockFileEntry struct {
	Name        string  `json:"name"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Type        string  `json:"type,omitempty"`
	Status      string  `json:"status,omitempty"`
	Difficulty  string  `json:"difficulty,omitempty"`
	EventID     *string `json:"event_id,omitempty"`
	RoutineID   *string `json:"routine_id,omitempty"`
	MeetingLink *string `json:"meeting_link,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Tasks       []struct {
		ID          string  `json:"id,omitempty"`
		LocalKey    string  `json:"local_key,omitempty"`
		Name        string  `json:"name,omitempty"`
		Description string  `json:"description,omitempty"`
		Duration    int     `json:"duration,omitempty"`
		Priority    string  `json:"priority,omitempty"`
		ProjectID   *string `json:"project_id,omitempty"`
		Completed   *bool   `json:"completed,omitempty"`
	} `json:"tasks,omitempty"`
}

func readProposalFile(path string) ([]engine.BlockProposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []blockFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	proposal := make([]engine.BlockProposal, 0, len(entries))
	for i, b := range entries {
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
			if t.ID != "" && t.LocalKey != "" {
				return nil, fmt.Errorf("block %d: task sets both id and local_key", i)
			}
			ref := domain.NoTask()
			switch {
			case t.ID != "":
				ref = domain.PersistedTask(t.ID)
			case t.LocalKey != "":
				ref = domain.DraftTask(t.LocalKey)
			}
			p.Tasks = append(p.Tasks, engine.TaskProposal{
				Ref:         ref,
				Name:        t.Name,
				Description: t.Description,
				Duration:    t.Duration,
				Priority:    t.Priority,
				ProjectID:   t.ProjectID,
				Completed:   t.Completed,
			})
		}
		proposal = append(proposal, p)
	}
	return proposal, nil
}

func dayRebuildCmd() *cobra.Command {
	var filePath string
	var destructive bool
	cmd := &cobra.Command{
		Use:   "rebuild <date>",
		Short: "Atomically replace a day's schedule from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			proposal, err := readProposalFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				day, err := e.EnsureDay(ctx, userID, date, userID)
				if err != nil {
					return err
				}
				rebuilt, err := e.RebuildDay(ctx, day.ID, userID, proposal, engine.RebuildOptions{
					Destructive: destructive,
					ActorID:     userID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rebuilt)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to proposal JSON (array of blocks)")
	cmd.Flags().BoolVar(&destructive, "destructive", false, "delete previous tasks instead of detaching to backlog")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func dayScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <date>",
		Short: "Score a finished day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				day, err := e.EnsureDay(ctx, userID, date, userID)
				if err != nil {
					return err
				}
				rating, err := e.ScoreDay(ctx, day.ID, userID, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rating)
				}
				fmt.Printf("%s: %d/10 (%d points)\n%s\n", rating.Level, rating.Score, rating.Points, rating.Comment)
				return nil
			})
		},
	}
	return cmd
}

func dayRegenerateCmd() *cobra.Command {
	var instruction string
	var destructive bool
	cmd := &cobra.Command{
		Use:   "regenerate <date>",
		Short: "Rewrite a day from an instruction like 'move <block-id> to 14:00'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				day, err := e.EnsureDay(ctx, userID, date, userID)
				if err != nil {
					return err
				}
				rules := schedule.DefaultRules()
				if r, err := e.Config.Rules(); err == nil {
					rules = r
				}
				result, err := e.Regenerate(ctx, day.ID, userID, instruction, plan.ShiftPlanner{Rules: rules}, engine.RebuildOptions{
					Destructive: destructive,
					ActorID:     userID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
	cmd.Flags().StringVar(&instruction, "instruction", "", "what to change")
	cmd.Flags().BoolVar(&destructive, "destructive", false, "delete detached tasks instead of backlogging them")
	_ = cmd.MarkFlagRequired("instruction")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <date>",
		Short: "Validate a day's schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				day, err := e.EnsureDay(ctx, userID, date, userID)
				if err != nil {
					return err
				}
				report, err := e.ValidateDay(ctx, day.ID, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				if report.Valid {
					fmt.Println("schedule OK")
				}
				for _, c := range report.Conflicts {
					fmt.Println("conflict:", c)
				}
				for _, a := range report.Advisories {
					fmt.Println("advisory:", a)
				}
				if len(report.KeepOrder) > 0 {
					fmt.Println("keep order:", strings.Join(report.KeepOrder, ", "))
				}
				return nil
			})
		},
	}
	return cmd
}

func blockCmd() *cobra.Command {
	block := &cobra.Command{
		Use:   "block",
		Short: "Manage blocks",
	}
	block.AddCommand(blockAddCmd())
	block.AddCommand(blockStatusCmd("done", domain.BlockComplete, "Mark a block complete"))
	block.AddCommand(blockStatusCmd("cancel", domain.BlockCancelled, "Cancel a block"))
	block.AddCommand(blockStatusCmd("reopen", domain.BlockPending, "Reopen a block"))
	return block
}

func blockAddCmd() *cobra.Command {
	var p engine.BlockProposal
	var date string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert one block into a day",
		Long:  "The block lands after its nearest preceding neighbor. An overlap does not reject the insert; the block is flagged out-of-order instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				day, err := e.EnsureDay(ctx, userID, date, userID)
				if err != nil {
					return err
				}
				inserted, err := e.InsertBlock(ctx, day.ID, userID, p, userID)
				if err != nil {
					return err
				}
				if len(inserted.Shifted) > 0 && !viper.GetBool("json") {
					fmt.Printf("shifted %d sibling block(s)\n", len(inserted.Shifted))
				}
				return printJSONOrTable(inserted.Block)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.Name, "name", "", "block name")
	cmd.Flags().StringVar(&p.StartTime, "start", "", "start time HH:MM")
	cmd.Flags().StringVar(&p.EndTime, "end", "", "end time HH:MM")
	cmd.Flags().StringVar(&p.Type, "type", "", "block type")
	cmd.Flags().StringVar(&p.Difficulty, "difficulty", "", "difficulty (easy, medium, hard)")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func blockStatusCmd(use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				b, err := e.SetBlockStatus(ctx, id, userID, status, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks live inside a block or in the backlog. Rebuilding a day detaches its tasks to the backlog, so nothing is lost unless you ask for it.",
	}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskMoveCmd())
	task.AddCommand(taskRmCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task, in a block or in the backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				opts.UserID = userID
				opts.ActorID = userID
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "task name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "estimated minutes")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "High, Medium, or Low")
	cmd.Flags().StringVar(&opts.BlockID, "block", "", "block id (empty for backlog)")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func taskListCmd() *cobra.Command {
	var backlog bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				var (
					tasks []domain.Task
					err   error
				)
				if backlog {
					tasks, err = e.Repo.ListBacklogTasks(ctx, userID)
				} else {
					tasks, err = e.Repo.ListTasksByUser(ctx, userID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Priority", "Duration", "Done", "Block"})
				for _, t := range tasks {
					blockID := ""
					if t.BlockID != nil {
						blockID = *t.BlockID
					}
					tw.AppendRow(table.Row{t.ID, t.Name, t.Priority, t.Duration, t.Completed, blockID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&backlog, "backlog", false, "only unscheduled tasks")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	var reopen bool
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				t, err := e.SetTaskCompleted(ctx, id, userID, !reopen, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().BoolVar(&reopen, "undo", false, "reopen instead of completing")
	return cmd
}

func taskMoveCmd() *cobra.Command {
	var blockID string
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Re-parent a task to a block, or to the backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				t, err := e.MoveTask(ctx, id, userID, blockID, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&blockID, "block", "", "target block id (empty for backlog)")
	return cmd
}

func taskRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				return e.DeleteTask(ctx, id, userID, userID)
			})
		},
	}
}

func eventCmd() *cobra.Command {
	event := &cobra.Command{
		Use:   "event",
		Short: "Manage calendar events",
	}
	event.AddCommand(eventAddCmd())
	event.AddCommand(eventListCmd())
	return event
}

func eventListCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calendar events for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				events, err := e.Repo.ListCalendarEventsByDate(ctx, userID, date)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func eventAddCmd() *cobra.Command {
	var evt domain.CalendarEvent
	var meetingLink string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a calendar event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				evt.UserID = userID
				evt.CreatedAt = time.Now().UTC().Format(time.RFC3339)
				if evt.ID == "" {
					evt.ID = engine.DayID(userID, "event|"+evt.Date+"|"+evt.Name+"|"+evt.StartTime)
				}
				if meetingLink != "" {
					evt.MeetingLink = &meetingLink
				}
				created, err := e.CreateCalendarEvent(ctx, evt, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&evt.ID, "id", "", "event id (optional)")
	cmd.Flags().StringVar(&evt.Name, "name", "", "event name")
	cmd.Flags().StringVar(&evt.Date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&evt.StartTime, "start", "", "start time HH:MM")
	cmd.Flags().StringVar(&evt.EndTime, "end", "", "end time HH:MM")
	cmd.Flags().StringVar(&evt.Location, "location", "", "location")
	cmd.Flags().StringVar(&meetingLink, "meeting-link", "", "meeting link")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func routineCmd() *cobra.Command {
	routine := &cobra.Command{
		Use:   "routine",
		Short: "Manage routines",
		Long:  "Routines are recurring templates. Stamping instantiates them as blocks with fresh task copies; a routine already present on the day is skipped, so stamping is safe to re-run.",
	}
	routine.AddCommand(routineAddCmd())
	routine.AddCommand(routineStampCmd())
	return routine
}

// parseRoutineTask accepts "Name" or "Name:minutes".
func parseRoutineTask(spec string) (string, int, error) {
	idx := strings.LastIndex(spec, ":")
	if idx < 0 {
		return spec, 0, nil
	}
	minutes, err := strconv.Atoi(spec[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("task %q: minutes after ':' must be a number", spec)
	}
	return spec[:idx], minutes, nil
}

func routineAddCmd() *cobra.Command {
	var rt domain.Routine
	var taskSpecs []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a routine template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				rt.UserID = userID
				rt.CreatedAt = time.Now().UTC().Format(time.RFC3339)
				if rt.ID == "" {
					rt.ID = engine.DayID(userID, "routine|"+rt.Name+"|"+rt.StartTime)
				}
				for i, spec := range taskSpecs {
					name, minutes, err := parseRoutineTask(spec)
					if err != nil {
						return err
					}
					rt.Tasks = append(rt.Tasks, domain.RoutineTask{
						ID:        fmt.Sprintf("%s-%d", rt.ID, i),
						RoutineID: rt.ID,
						Name:      name,
						Duration:  minutes,
					})
				}
				created, err := e.CreateRoutine(ctx, rt, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&rt.ID, "id", "", "routine id (optional)")
	cmd.Flags().StringVar(&rt.Name, "name", "", "routine name")
	cmd.Flags().StringVar(&rt.StartTime, "start", "", "start time HH:MM")
	cmd.Flags().StringVar(&rt.EndTime, "end", "", "end time HH:MM")
	cmd.Flags().StringArrayVar(&rt.Days, "day", []string{}, "weekday the routine runs on (repeatable, empty means every day)")
	cmd.Flags().StringArrayVar(&taskSpecs, "task", []string{}, "template task, 'Name' or 'Name:minutes' (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func routineStampCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stamp <date>",
		Short: "Stamp due routines into a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				n, err := e.StampRoutines(ctx, userID, date, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"stamped": n})
				}
				fmt.Printf("stamped %d routine(s) into %s\n", n, date)
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: days created, blocks inserted, rebuilds, routine stamps, and scores.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				events, err := e.Repo.ListEvents(ctx, userID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveUserAndConfig(cmd.Context(), workspace, viper.GetString("user"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("DAYLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyHeader,
			}
			if authCfg.JWTSecret == "" && !allowLegacyHeader {
				return fmt.Errorf("DAYLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Dayline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyHeader, "allow-legacy-actor-header", false, "accept the deprecated X-Actor-Id header instead of a bearer token")
	return cmd
}

func workerCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background generation worker",
		Long:  "Stamps routines into the day on the configured timetable. Failed stamp runs are retried with exponential backoff up to the configured budget.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			userID, cfg, err := app.ResolveUserAndConfig(cmd.Context(), workspace, viper.GetString("user"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)

			gen := cfg.Generation
			q := jobs.NewQueue(gen.MaxRetries,
				time.Duration(gen.BackoffBaseMS)*time.Millisecond,
				time.Duration(gen.BackoffMaxMS)*time.Millisecond)
			q.Start(cmd.Context(), workers)
			defer q.Close()

			sched := jobs.NewScheduler(q)
			stampAt := gen.StampTime
			if stampAt == "" {
				stampAt = "05:00"
			}
			if err := sched.Daily(stampAt, jobs.RoutineStampJob(e, userID)); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			fmt.Printf("Worker running: stamping routines for %s daily at %s\n", userID, stampAt)
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 1, "queue worker goroutines")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, string) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	userID, cfg, err := app.ResolveUserAndConfig(ctx, workspace, viper.GetString("user"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e, userID)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
