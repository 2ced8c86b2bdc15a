package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"slipline/internal/app"
	"slipline/internal/config"
	"slipline/internal/db"
	"slipline/internal/domain"
	"slipline/internal/engine"
	"slipline/internal/migrate"
	"slipline/internal/repo"
	"slipline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "slipline",
	Short: "Slipline CLI",
	Long: `Slipline keeps a shipyard hull-fabrication schedule honest.
Core concepts:
- Workspace: your .slipline directory holding the SQLite database; config is stored in the DB and imported explicitly.
- Project: one hull under construction, broken into ordered phases and stages.
- Stages: the schedulable units (plate cutting, block assembly, ...) carrying planned, actual and baseline dates.
- Dependencies: finish-to-start edges between stages; circular chains are rejected.
- Baselines: immutable versioned snapshots of the planned schedule, struck only through an approved change request.
- Change requests: the approval gate; scope changes additionally need the owner's representative.
- Deviations: planned end vs baseline end per stage (ahead, on_baseline, delayed).
- Notifications: broadcast to every stakeholder role on baseline and change-request events, view with 'slipline notifications tail'.`,
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
	viper.SetEnvPrefix("SLIPLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "stakeholder id acting on the schedule")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides the single-project default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(stakeholderCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(depCmd())
	rootCmd.AddCommand(baselineCmd())
	rootCmd.AddCommand(changeCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(ganttCmd())
	rootCmd.AddCommand(deviationsCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectUseCmd())
	prj.AddCommand(projectConfigCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func projectCreateCmd() *cobra.Command {
	var id, name, desc, shipyard, vessel, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a hull fabrication project",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID := viper.GetString("actor-id")
			if actorID == "" {
				return fmt.Errorf("--actor-id required (the creator becomes lead project manager)")
			}
			return withDB(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					ID:               id,
					Name:             name,
					Description:      desc,
					ShipyardName:     shipyard,
					VesselType:       vessel,
					PlannedStartDate: optionalString(start),
					PlannedEndDate:   optionalString(end),
					ActorID:          actorID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&shipyard, "shipyard", "", "shipyard name")
	cmd.Flags().StringVar(&vessel, "vessel-type", "", "vessel type")
	cmd.Flags().StringVar(&start, "start", "", "planned start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "planned end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var name, desc, start, end string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update project schedule fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ProjectUpdateOptions{
					ProjectID: e.Config.Project.ID,
					ActorID:   viper.GetString("actor-id"),
				}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("start") {
					opts.PlannedStartDate = &start
				}
				if cmd.Flags().Changed("end") {
					opts.PlannedEndDate = &end
				}
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "planned start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "planned end date (YYYY-MM-DD)")
	return cmd
}

func projectUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			if projectID == "" {
				return fmt.Errorf("project id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "SLIPLINE_PROJECT", projectID); err != nil {
				return err
			}
			fmt.Printf("Set SLIPLINE_PROJECT=%s in %s/.env\n", projectID, workspace)
			return nil
		},
	}
}

func projectConfigCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage project config"}
	cfg.AddCommand(projectConfigShowCmd())
	cfg.AddCommand(projectConfigImportCmd())
	cfg.AddCommand(projectConfigInitCmd())
	return cfg
}

func projectConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show project config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
}

func projectConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import project config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			projectID := cfg.Project.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if projectID == "" {
					projectID = e.Config.Project.ID
				}
				if err := e.Repo.UpsertProjectConfig(ctx, projectID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func projectConfigInitCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print the default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault(id))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "my-hull", "project id to embed")
	return cmd
}

func stakeholderCmd() *cobra.Command {
	s := &cobra.Command{Use: "stakeholder", Short: "Manage stakeholders and role assignments"}
	s.AddCommand(stakeholderCreateCmd())
	s.AddCommand(stakeholderListCmd())
	s.AddCommand(stakeholderAssignCmd())
	s.AddCommand(stakeholderUnassignCmd())
	s.AddCommand(stakeholderRolesCmd())
	return s
}

func stakeholderCreateCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a stakeholder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateStakeholder(ctx, name, email)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func stakeholderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered stakeholders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListStakeholders(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.FullName, s.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func stakeholderAssignCmd() *cobra.Command {
	var stakeholderID, role string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a role on the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ps, err := e.AssignStakeholder(ctx, e.Config.Project.ID, stakeholderID, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(ps)
			})
		},
	}
	cmd.Flags().StringVar(&stakeholderID, "stakeholder", "", "stakeholder id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	_ = cmd.MarkFlagRequired("stakeholder")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func stakeholderUnassignCmd() *cobra.Command {
	var stakeholderID, role string
	cmd := &cobra.Command{
		Use:   "unassign",
		Short: "Remove a role assignment from the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveStakeholder(ctx, e.Config.Project.ID, stakeholderID, role)
			})
		},
	}
	cmd.Flags().StringVar(&stakeholderID, "stakeholder", "", "stakeholder id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	_ = cmd.MarkFlagRequired("stakeholder")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func stakeholderRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List role assignments on the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAssignments(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func phaseCmd() *cobra.Command {
	p := &cobra.Command{Use: "phase", Short: "Manage phases"}
	p.AddCommand(phaseAddCmd())
	p.AddCommand(phaseListCmd())
	p.AddCommand(phaseReorderCmd())
	p.AddCommand(phaseRemoveCmd())
	return p
}

func phaseAddCmd() *cobra.Command {
	var name, desc string
	var position int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AddPhase(ctx, engine.PhaseAddOptions{
					ProjectID:   e.Config.Project.ID,
					Name:        name,
					Description: desc,
					Position:    position,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "phase name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().IntVar(&position, "position", 0, "position (appended when 0)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func phaseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List phases in position order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListPhases(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Pos", "ID", "Name", "Progress"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.Position, p.ID, p.Name, fmt.Sprintf("%.1f%%", p.OverallProgressPct)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func phaseReorderCmd() *cobra.Command {
	var order []string
	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Reorder phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ReorderPhases(ctx, e.Config.Project.ID, order, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringSliceVar(&order, "order", nil, "phase ids in the desired order")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func phaseRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <phase-id>",
		Short: "Remove a phase without recorded actuals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemovePhase(ctx, e.Config.Project.ID, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func stageCmd() *cobra.Command {
	s := &cobra.Command{Use: "stage", Short: "Manage stages"}
	s.AddCommand(stageAddCmd())
	s.AddCommand(stageListCmd())
	s.AddCommand(stageShowCmd())
	s.AddCommand(stageScheduleCmd())
	s.AddCommand(stageProgressCmd())
	s.AddCommand(stageHistoryCmd())
	return s
}

func stageAddCmd() *cobra.Command {
	var phaseID, name, desc, start, end string
	var position int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a stage to a phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.AddStage(ctx, engine.StageAddOptions{
					ProjectID:        e.Config.Project.ID,
					PhaseID:          phaseID,
					Name:             name,
					Description:      desc,
					Position:         position,
					PlannedStartDate: optionalString(start),
					PlannedEndDate:   optionalString(end),
					ActorID:          viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&phaseID, "phase", "", "phase id")
	cmd.Flags().StringVar(&name, "name", "", "stage name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().IntVar(&position, "position", 0, "position within the phase")
	cmd.Flags().StringVar(&start, "start", "", "planned start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "planned end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("phase")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func stageListCmd() *cobra.Command {
	var phaseID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.Stage
				var err error
				if phaseID != "" {
					items, err = e.Repo.ListStagesByPhase(ctx, phaseID)
				} else {
					items, err = e.Repo.ListStages(ctx, e.Config.Project.ID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Progress", "Planned", "Deviation"})
				for _, s := range items {
					tw.AppendRow(table.Row{
						s.ID, s.Name, s.Status,
						fmt.Sprintf("%.1f%%", s.ProgressPct),
						dateRange(s.PlannedStartDate, s.PlannedEndDate),
						deviationCell(s),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&phaseID, "phase", "", "filter by phase id")
	return cmd
}

func stageShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <stage-id>",
		Short: "Show a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetStage(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func stageScheduleCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "schedule <stage-id>",
		Short: "Rewrite a stage's planned dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateStageSchedule(ctx, engine.StageScheduleOptions{
					StageID:          args[0],
					PlannedStartDate: optionalString(start),
					PlannedEndDate:   optionalString(end),
					ActorID:          viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "planned start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "planned end date (YYYY-MM-DD)")
	return cmd
}

func stageProgressCmd() *cobra.Command {
	var status, started, finished, comments string
	var pct float64
	cmd := &cobra.Command{
		Use:   "progress <stage-id>",
		Short: "Record a progress update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.RecordProgress(ctx, engine.ProgressOptions{
					StageID:         args[0],
					Status:          status,
					ProgressPct:     pct,
					ActualStartDate: optionalString(started),
					ActualEndDate:   optionalString(finished),
					Comments:        comments,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "not_started|in_progress|blocked|completed")
	cmd.Flags().Float64Var(&pct, "pct", 0, "progress percentage 0-100")
	cmd.Flags().StringVar(&started, "started", "", "actual start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&finished, "finished", "", "actual end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&comments, "comments", "", "progress comments")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func stageHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <stage-id>",
		Short: "Show a stage's progress history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListStatusUpdates(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func depCmd() *cobra.Command {
	d := &cobra.Command{Use: "dep", Short: "Manage stage dependencies"}
	d.AddCommand(depAddCmd())
	d.AddCommand(depListCmd())
	d.AddCommand(depRemoveCmd())
	return d
}

func depAddCmd() *cobra.Command {
	var predecessor, successor string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a finish-to-start dependency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AddDependency(ctx, e.Config.Project.ID, predecessor, successor, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&predecessor, "from", "", "predecessor stage id")
	cmd.Flags().StringVar(&successor, "to", "", "successor stage id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func depListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stage dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListDependencies(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func depRemoveCmd() *cobra.Command {
	var predecessor, successor string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a dependency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveDependency(ctx, e.Config.Project.ID, predecessor, successor, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&predecessor, "from", "", "predecessor stage id")
	cmd.Flags().StringVar(&successor, "to", "", "successor stage id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func baselineCmd() *cobra.Command {
	b := &cobra.Command{Use: "baseline", Short: "Manage schedule baselines"}
	b.AddCommand(baselineInitCmd())
	b.AddCommand(baselineResetCmd())
	b.AddCommand(baselineListCmd())
	b.AddCommand(baselineReportCmd())
	b.AddCommand(baselineSnapshotsCmd())
	return b
}

func baselineInitCmd() *cobra.Command {
	var changeRequestID, notes string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Strike the version-1 baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.SetInitialBaseline(ctx, engine.BaselineOptions{
					ProjectID:       e.Config.Project.ID,
					ChangeRequestID: changeRequestID,
					Notes:           notes,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&changeRequestID, "change-request", "", "approved initial_baseline change request id")
	cmd.Flags().StringVar(&notes, "notes", "", "baseline notes")
	_ = cmd.MarkFlagRequired("change-request")
	return cmd
}

func baselineResetCmd() *cobra.Command {
	var changeRequestID, notes string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Supersede the active baseline with the next version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.ResetBaseline(ctx, engine.BaselineOptions{
					ProjectID:       e.Config.Project.ID,
					ChangeRequestID: changeRequestID,
					Notes:           notes,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&changeRequestID, "change-request", "", "approved change request id")
	cmd.Flags().StringVar(&notes, "notes", "", "baseline notes")
	_ = cmd.MarkFlagRequired("change-request")
	return cmd
}

func baselineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List baseline versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListBaselines(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Version", "ID", "Active", "Set by", "Set at"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.VersionNumber, b.ID, b.IsActive, b.SetByID, b.SetAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func baselineReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Structured report over the active baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.GenerateBaselineReport(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(report)
			})
		},
	}
}

func baselineSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots <baseline-id>",
		Short: "List the stage snapshots of one baseline version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSnapshots(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func changeCmd() *cobra.Command {
	c := &cobra.Command{Use: "change", Short: "Manage change requests"}
	c.AddCommand(changeSubmitCmd())
	c.AddCommand(changeListCmd())
	c.AddCommand(changeShowCmd())
	c.AddCommand(changeApproveCmd())
	c.AddCommand(changeRejectCmd())
	return c
}

func changeSubmitCmd() *cobra.Command {
	var approver, changeType, reason, comments string
	var impactDays int
	var costImpact float64
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a change request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ChangeSubmitOptions{
					ProjectID:           e.Config.Project.ID,
					ApproverID:          approver,
					ChangeType:          changeType,
					Reason:              reason,
					ScheduleImpactDays:  impactDays,
					StakeholderComments: comments,
					ActorID:             viper.GetString("actor-id"),
				}
				if cmd.Flags().Changed("cost-impact") {
					opts.CostImpact = &costImpact
				}
				cr, err := e.SubmitChangeRequest(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cr)
			})
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "designated approver stakeholder id")
	cmd.Flags().StringVar(&changeType, "type", "", "initial_baseline|delay|scope_change|cost_change|other")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the change")
	cmd.Flags().IntVar(&impactDays, "impact-days", 0, "schedule impact in days")
	cmd.Flags().Float64Var(&costImpact, "cost-impact", 0, "cost impact")
	cmd.Flags().StringVar(&comments, "comments", "", "stakeholder comments")
	_ = cmd.MarkFlagRequired("approver")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func changeListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List change requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListChangeRequests(ctx, e.Config.Project.ID, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter: pending|approved|rejected")
	return cmd
}

func changeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <change-request-id>",
		Short: "Show a change request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cr, err := r.GetChangeRequest(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cr)
			})
		},
	}
}

func changeApproveCmd() *cobra.Command {
	var comments string
	cmd := &cobra.Command{
		Use:   "approve <change-request-id>",
		Short: "Approve a pending change request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cr, err := e.ApproveChangeRequest(ctx, args[0], viper.GetString("actor-id"), comments)
				if err != nil {
					return err
				}
				return printJSONOrTable(cr)
			})
		},
	}
	cmd.Flags().StringVar(&comments, "comments", "", "mandatory reviewer comments")
	return cmd
}

func changeRejectCmd() *cobra.Command {
	var comments string
	cmd := &cobra.Command{
		Use:   "reject <change-request-id>",
		Short: "Reject a pending change request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cr, err := e.RejectChangeRequest(ctx, args[0], viper.GetString("actor-id"), comments)
				if err != nil {
					return err
				}
				return printJSONOrTable(cr)
			})
		},
	}
	cmd.Flags().StringVar(&comments, "comments", "", "mandatory reviewer comments")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the project schedule summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				report, err := e.Deviations(ctx, p.ID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"project_id":           p.ID,
					"name":                 p.Name,
					"overall_progress_pct": p.OverallProgressPct,
					"active_baseline_id":   p.ActiveBaselineID,
					"stages_on_baseline":   report.OnBaseline,
					"stages_ahead":         report.Ahead,
					"stages_delayed":       report.Delayed,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Project: %s (%s)\n", p.Name, p.ID)
				fmt.Printf("Overall progress: %.1f%%\n", p.OverallProgressPct)
				if p.ActiveBaselineID != nil {
					fmt.Printf("Active baseline: %s\n", *p.ActiveBaselineID)
				} else {
					fmt.Println("Active baseline: none")
				}
				fmt.Printf("Stages: %d on baseline, %d ahead, %d delayed\n", report.OnBaseline, report.Ahead, report.Delayed)
				return nil
			})
		},
	}
}

func ganttCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gantt",
		Short: "Show the full schedule: phases, stages, dependencies, deviations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.Gantt(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				fmt.Printf("Project: %s (%.1f%% complete)\n", view.ProjectName, view.OverallProgressPct)
				for _, ph := range view.Phases {
					fmt.Printf("\n[%d] %s (%.1f%%) %s\n", ph.Position, ph.Name, ph.OverallProgressPct, dateRange(ph.PlannedStartDate, ph.PlannedEndDate))
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"ID", "Stage", "Status", "Progress", "Planned", "Deviation"})
					for _, s := range ph.Stages {
						tw.AppendRow(table.Row{
							s.ID,
							s.Name,
							s.Status,
							fmt.Sprintf("%.0f%%", s.ProgressPct),
							dateRange(s.PlannedStartDate, s.PlannedEndDate),
							deviationCell(s),
						})
					}
					tw.Render()
					for _, d := range ph.Dependencies {
						fmt.Printf("  %s -> %s\n", d.PredecessorStageID, d.SuccessorStageID)
					}
				}
				fmt.Printf("\n%d on baseline, %d ahead, %d delayed\n", view.OnBaseline, view.Ahead, view.Delayed)
				return nil
			})
		},
	}
}

func deviationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deviations",
		Short: "Show stage deviations against the active baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.Deviations(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Stage", "Status", "Planned end", "Baseline end", "Deviation"})
				for _, s := range report.Stages {
					tw.AppendRow(table.Row{
						s.Name, s.Status,
						strOrDash(s.PlannedEndDate),
						strOrDash(s.BaselineEndDate),
						deviationCell(s),
					})
				}
				tw.Render()
				fmt.Printf("%d on baseline, %d ahead, %d delayed\n", report.OnBaseline, report.Ahead, report.Delayed)
				return nil
			})
		},
	}
}

func auditCmd() *cobra.Command {
	var csvOut bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the baseline audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAuditTrail(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if csvOut {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"sequence_number", "occurred_at_utc", "change_type", "reason", "schedule_impact_days", "stakeholder_comments", "reviewer_comments", "changed_by_id", "approved_by_id", "baseline_id"})
					for _, entry := range items {
						tw.AppendRow(table.Row{
							entry.SequenceNumber,
							entry.OccurredAt,
							entry.ChangeType,
							entry.Reason,
							entry.ScheduleImpactDays,
							entry.StakeholderComments,
							entry.ReviewerComments,
							entry.ChangedByID,
							strOrDash(entry.ApprovedByID),
							entry.BaselineID,
						})
					}
					tw.RenderCSV()
					return nil
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().BoolVar(&csvOut, "csv", false, "emit CSV instead of a table")
	return cmd
}

func notificationsCmd() *cobra.Command {
	n := &cobra.Command{Use: "notifications", Short: "Inspect the notification log"}
	n.AddCommand(notificationsTailCmd())
	return n
}

func notificationsTailCmd() *cobra.Command {
	var stakeholderID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.Notification
				var err error
				if stakeholderID != "" {
					items, err = e.Repo.ListNotificationsForStakeholder(ctx, stakeholderID)
				} else {
					items, err = e.Repo.ListNotificationsForProject(ctx, e.Config.Project.ID)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&stakeholderID, "stakeholder", "", "filter by stakeholder id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyRevokeCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the acting stakeholder",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID := viper.GetString("actor-id")
			if actorID == "" {
				return fmt.Errorf("--actor-id required")
			}
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			key := "slk_" + hex.EncodeToString(raw)
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetStakeholder(ctx, actorID); err != nil {
					return err
				}
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				rec := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(key),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, tx, rec); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				fmt.Printf("API key (shown once): %s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys for the acting stakeholder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
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
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveProjectAndConfig(cmd.Context(), viper.GetString("project"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("SLIPLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowActorHeader,
			}
			if authCfg.JWTSecret == "" && !allowActorHeader {
				return fmt.Errorf("SLIPLINE_JWT_SECRET is required for bearer auth (or pass --allow-actor-header for local use)")
			}
			handler, err := server.New(cmd.Context(), server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Slipline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept the X-Actor-Id header without auth (local use)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
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
	_, cfg, err := app.ResolveProjectAndConfig(ctx, viper.GetString("project"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

// withDB builds an engine without resolving an active project, for commands
// that run before any project exists.
func withDB(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, nil))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
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

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strOrDash(ptr *string) string {
	if ptr == nil {
		return "-"
	}
	return *ptr
}

func dateRange(start, end *string) string {
	return strOrDash(start) + " .. " + strOrDash(end)
}

func deviationCell(s domain.Stage) string {
	if s.DeviationStatus == nil || s.DeviationDays == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%+d)", *s.DeviationStatus, *s.DeviationDays)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
