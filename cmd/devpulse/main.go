package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"devpulse/internal/config"
	"devpulse/internal/db"
	"devpulse/internal/engine"
	"devpulse/internal/migrate"
	"devpulse/internal/repo"
	"devpulse/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "devpulse",
	Short: "DevPulse CLI",
	Long: `DevPulse serves workspace-scoped software-delivery metrics:
DORA indicators, flow metrics, pull-request analytics, and workflow
bottleneck health, computed from recorded sprints, tasks, deployments,
incidents, pull requests, reviews, and stage events.`,
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
	viper.SetEnvPrefix("DEVPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("owner", "local-user", "workspace owner identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(deploymentCmd())
	rootCmd.AddCommand(incidentCmd())
	rootCmd.AddCommand(debtCmd())
	rootCmd.AddCommand(prCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(eventsCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if _, err := migrate.Migrate(conn); err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			e := engine.New(conn)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:           os.Getenv("DEVPULSE_JWT_SECRET"),
					AllowHeaderIdentity: cfg.Auth.AllowHeaderIdentity,
				},
				Webhooks: cfg.Webhooks,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			defer handler.Close()
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving DevPulse API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.Migrate(conn)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("schema up to date:", db.Path(workspace))
				return nil
			}
			for _, name := range applied {
				fmt.Println("applied:", name)
			}
			return nil
		},
	}
}

func metricsCmd() *cobra.Command {
	m := &cobra.Command{Use: "metrics", Short: "Delivery metrics"}
	m.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "DORA metrics for the rolling 30-day window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				dm, err := e.DORAMetrics(ctx, scope)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(dm)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Metric", "Value"})
				tw.AppendRow(table.Row{"Deployment frequency (30d)", dm.DeploymentFrequency})
				tw.AppendRow(table.Row{"Lead time (h)", fmt.Sprintf("%.1f", dm.LeadTimeHours)})
				tw.AppendRow(table.Row{"MTTR (h)", fmt.Sprintf("%.1f", dm.MTTRHours)})
				tw.AppendRow(table.Row{"Change failure rate (%)", fmt.Sprintf("%.1f", dm.ChangeFailureRate)})
				tw.Render()
				return nil
			})
		},
	})
	m.AddCommand(&cobra.Command{
		Use:   "bottlenecks",
		Short: "Workflow stage dwell-time health (all workspaces)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reports, err := e.Bottlenecks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Stage", "Events", "Avg hours", "Status"})
				for _, r := range reports {
					tw.AppendRow(table.Row{r.Stage, r.EventCount, r.AvgHours, r.Status})
				}
				tw.Render()
				return nil
			})
		},
	})
	return m
}

func sprintCmd() *cobra.Command {
	s := &cobra.Command{Use: "sprint", Short: "Manage sprints"}
	s.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sprints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				sprints, err := r.ListSprints(ctx, scope)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sprints)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "Status"})
				for _, sp := range sprints {
					tw.AppendRow(table.Row{sp.ID, sp.Name, sp.StartDate, sp.EndDate, sp.Status})
				}
				tw.Render()
				return nil
			})
		},
	})

	var name, start, end, goal string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				sp, err := e.CreateSprint(ctx, scope, engine.SprintCreateOptions{
					Name: name, StartDate: start, EndDate: end, Goal: goal,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(sp)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "sprint name")
	create.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	create.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	create.Flags().StringVar(&goal, "goal", "", "sprint goal")
	s.AddCommand(create)
	return s
}

func deploymentCmd() *cobra.Command {
	d := &cobra.Command{Use: "deployment", Short: "Record deployments"}
	var env, status string
	var duration int
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				dep, err := e.RecordDeployment(ctx, scope, engine.DeploymentOptions{
					Environment: env, Status: status, DurationSeconds: duration,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(dep)
			})
		},
	}
	record.Flags().StringVar(&env, "environment", "", "target environment (default production)")
	record.Flags().StringVar(&status, "status", "", "success or failure (default success)")
	record.Flags().IntVar(&duration, "duration", 0, "duration in seconds (default 300)")
	d.AddCommand(record)
	return d
}

func incidentCmd() *cobra.Command {
	i := &cobra.Command{Use: "incident", Short: "Record incidents"}
	var desc, severity, resolvedAt string
	record := &cobra.Command{
		Use:   "record",
		Short: "Report an incident",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				in, err := e.RecordIncident(ctx, scope, engine.IncidentOptions{
					Description: desc, Severity: severity, ResolvedAt: resolvedAt,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	record.Flags().StringVar(&desc, "description", "", "what happened")
	record.Flags().StringVar(&severity, "severity", "", "severity (default major)")
	record.Flags().StringVar(&resolvedAt, "resolved-at", "", "RFC3339 resolution time, if already resolved")
	i.AddCommand(record)
	return i
}

func debtCmd() *cobra.Command {
	d := &cobra.Command{Use: "debt", Short: "Track technical debt"}
	d.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List debt items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				items, err := r.ListDebt(ctx, scope)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Effort (h)", "Status"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Title, it.Priority, it.EstimatedEffortHours, it.Status})
				}
				tw.Render()
				return nil
			})
		},
	})

	var title, desc, priority, relatedRepo string
	var effort float64
	add := &cobra.Command{
		Use:   "add",
		Short: "Log a debt item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				item, err := e.CreateDebt(ctx, scope, engine.DebtOptions{
					Title: title, Description: desc, Priority: priority,
					RelatedRepo: relatedRepo, EstimatedEffortHours: effort,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "debt title")
	add.Flags().StringVar(&desc, "description", "", "details")
	add.Flags().StringVar(&priority, "priority", "", "priority (default medium)")
	add.Flags().StringVar(&relatedRepo, "repo", "", "related repository")
	add.Flags().Float64Var(&effort, "effort", 0, "estimated effort in hours")
	d.AddCommand(add)

	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a debt item fixed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				if err := e.ResolveDebt(ctx, scope, args[0]); err != nil {
					return err
				}
				fmt.Println("debt resolved:", args[0])
				return nil
			})
		},
	}
	d.AddCommand(resolve)
	return d
}

func prCmd() *cobra.Command {
	p := &cobra.Command{Use: "pr", Short: "Record pull requests and reviews"}

	var title, author, status, createdAt, mergedAt, closedAt string
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a pull request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				pr, err := e.RecordPullRequest(ctx, scope, engine.PROptions{
					Title: title, AuthorID: author, Status: status,
					CreatedAt: createdAt, MergedAt: mergedAt, ClosedAt: closedAt,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(pr)
			})
		},
	}
	record.Flags().StringVar(&title, "title", "", "PR title")
	record.Flags().StringVar(&author, "author", "", "author developer id")
	record.Flags().StringVar(&status, "status", "", "open, merged, or closed (default open)")
	record.Flags().StringVar(&createdAt, "created-at", "", "RFC3339 creation time (default now)")
	record.Flags().StringVar(&mergedAt, "merged-at", "", "RFC3339 merge time")
	record.Flags().StringVar(&closedAt, "closed-at", "", "RFC3339 close time")
	p.AddCommand(record)

	var prID, reviewer, reviewedAt string
	review := &cobra.Command{
		Use:   "review",
		Short: "Record a review on a pull request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				rv, err := e.RecordPRReview(ctx, scope, prID, reviewer, reviewedAt)
				if err != nil {
					return err
				}
				return printJSONOrTable(rv)
			})
		},
	}
	review.Flags().StringVar(&prID, "pr", "", "pull request id")
	review.Flags().StringVar(&reviewer, "reviewer", "", "reviewer developer id")
	review.Flags().StringVar(&reviewedAt, "reviewed-at", "", "RFC3339 review time (default now)")
	p.AddCommand(review)
	return p
}

func stageCmd() *cobra.Command {
	s := &cobra.Command{Use: "stage", Short: "Record workflow stage events"}
	var name, enteredAt, exitedAt string
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a stage interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RecordStageEvent(ctx, name, enteredAt, exitedAt)
			})
		},
	}
	record.Flags().StringVar(&name, "name", "", "stage name")
	record.Flags().StringVar(&enteredAt, "entered-at", "", "RFC3339 entry time (default now)")
	record.Flags().StringVar(&exitedAt, "exited-at", "", "RFC3339 exit time (omit if still in stage)")
	s.AddCommand(record)
	return s
}

func eventsCmd() *cobra.Command {
	e := &cobra.Command{Use: "events", Short: "Audit event log"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				scope, err := ownerScope()
				if err != nil {
					return err
				}
				events, err := r.LatestEvents(ctx, scope, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Entity ID"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind, ev.EntityID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "max events")
	e.AddCommand(tail)
	return e
}

func ownerScope() (repo.Scope, error) {
	return repo.NewScope(viper.GetString("owner"))
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := migrate.Migrate(conn); err != nil {
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
