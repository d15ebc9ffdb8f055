package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"devpulse/internal/domain"
	"devpulse/internal/engine"
)

type loginBody struct {
	Email    string `json:"email" format:"email" doc:"Developer email"`
	Password string `json:"password,omitempty" doc:"Ignored by the stand-in identity provider"`
}

type loginResponse struct {
	domain.Developer
	IsNewUser bool `json:"isNewUser,omitempty"`
}

func (s *api) registerAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in, registering the developer on first contact",
	}, func(ctx context.Context, input *struct {
		Body loginBody
	}) (*struct {
		Body loginResponse `json:"body"`
	}, error) {
		res, err := s.engine.Login(ctx, input.Body.Email)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body loginResponse `json:"body"`
		}{Body: loginResponse{Developer: res.Developer, IsNewUser: res.IsNewUser}}, nil
	})
}

type activeSprint struct {
	domain.Sprint
	Tasks []domain.Task `json:"tasks"`
}

func (s *api) registerSprints(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sprints",
		Method:      http.MethodGet,
		Path:        "/sprints",
		Summary:     "List sprints, newest start date first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Sprint `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sprints, err := s.engine.Repo.ListSprints(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		if sprints == nil {
			sprints = []domain.Sprint{}
		}
		return &struct {
			Body []domain.Sprint `json:"body"`
		}{Body: sprints}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "active-sprint",
		Method:      http.MethodGet,
		Path:        "/sprints/active",
		Summary:     "The active sprint with its tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body activeSprint `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sprint, err := s.engine.Repo.ActiveSprint(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		tasks, err := s.engine.Repo.ListSprintTasks(ctx, scope, sprint.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return &struct {
			Body activeSprint `json:"body"`
		}{Body: activeSprint{Sprint: sprint, Tasks: tasks}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-sprint",
		Method:        http.MethodPost,
		Path:          "/sprints",
		Summary:       "Create a sprint",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name      string `json:"name"`
			StartDate string `json:"start_date" format:"date"`
			EndDate   string `json:"end_date" format:"date"`
			Goal      string `json:"goal,omitempty"`
		}
	}) (*struct {
		Body domain.Sprint `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sprint, err := s.engine.CreateSprint(ctx, scope, engine.SprintCreateOptions{
			Name:      input.Body.Name,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			Goal:      input.Body.Goal,
		})
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body domain.Sprint `json:"body"`
		}{Body: sprint}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-sprint-task",
		Method:        http.MethodPost,
		Path:          "/sprints/{sprint_id}/tasks",
		Summary:       "Create a task in an owned sprint",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
		Body     struct {
			Title      string  `json:"title"`
			Type       string  `json:"type,omitempty"`
			AssigneeID string  `json:"assignee_id,omitempty"`
			Points     float64 `json:"points,omitempty"`
		}
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := s.engine.CreateSprintTask(ctx, scope, engine.TaskCreateOptions{
			SprintID:   input.SprintID,
			Title:      input.Body.Title,
			Type:       input.Body.Type,
			Points:     input.Body.Points,
			AssigneeID: input.Body.AssigneeID,
		})
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})
}

type recordedResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (s *api) registerMetrics(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dora-metrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Summary:     "DORA metrics over the rolling 30-day window",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.DORAMetrics `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := s.engine.DORAMetrics(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body engine.DORAMetrics `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-deployment",
		Method:        http.MethodPost,
		Path:          "/metrics/deployments",
		Summary:       "Record a deployment",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body struct {
			Environment     string `json:"environment,omitempty"`
			Status          string `json:"status,omitempty" enum:"success,failure"`
			DurationSeconds int    `json:"duration_seconds,omitempty"`
		}
	}) (*struct {
		Body recordedResponse `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := s.engine.RecordDeployment(ctx, scope, engine.DeploymentOptions{
			Environment:     input.Body.Environment,
			Status:          input.Body.Status,
			DurationSeconds: input.Body.DurationSeconds,
		})
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body recordedResponse `json:"body"`
		}{Body: recordedResponse{ID: d.ID, Message: "Deployment recorded"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-incident",
		Method:        http.MethodPost,
		Path:          "/metrics/incidents",
		Summary:       "Report an incident",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Description string `json:"description"`
			Severity    string `json:"severity,omitempty"`
		}
	}) (*struct {
		Body recordedResponse `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		in, err := s.engine.RecordIncident(ctx, scope, engine.IncidentOptions{
			Description: input.Body.Description,
			Severity:    input.Body.Severity,
		})
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body recordedResponse `json:"body"`
		}{Body: recordedResponse{ID: in.ID, Message: "Incident reported"}}, nil
	})
}

func (s *api) registerDebt(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-debt",
		Method:      http.MethodGet,
		Path:        "/debt",
		Summary:     "List technical debt, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.DebtItem `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := s.engine.Repo.ListDebt(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		if items == nil {
			items = []domain.DebtItem{}
		}
		return &struct {
			Body []domain.DebtItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-debt",
		Method:        http.MethodPost,
		Path:          "/debt",
		Summary:       "Log a technical debt item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Title                string  `json:"title"`
			Description          string  `json:"description,omitempty"`
			Priority             string  `json:"priority,omitempty"`
			RelatedRepo          string  `json:"related_repo,omitempty"`
			EstimatedEffortHours float64 `json:"estimated_effort_hours,omitempty"`
		}
	}) (*struct {
		Body domain.DebtItem `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := s.engine.CreateDebt(ctx, scope, engine.DebtOptions{
			Title:                input.Body.Title,
			Description:          input.Body.Description,
			Priority:             input.Body.Priority,
			RelatedRepo:          input.Body.RelatedRepo,
			EstimatedEffortHours: input.Body.EstimatedEffortHours,
		})
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body domain.DebtItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-debt",
		Method:      http.MethodPut,
		Path:        "/debt/{id}/resolve",
		Summary:     "Mark a debt item fixed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Message string `json:"message"`
		} `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.ResolveDebt(ctx, scope, input.ID); err != nil {
			return nil, s.handleError(err)
		}
		out := &struct {
			Body struct {
				Message string `json:"message"`
			} `json:"body"`
		}{}
		out.Body.Message = "Debt resolved"
		return out, nil
	})
}

func (s *api) registerPR(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "pr-volume",
		Method:      http.MethodGet,
		Path:        "/pr/volume",
		Summary:     "Pull requests per ISO week, last 12 weeks",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.VolumeEntry `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entries, err := s.engine.PRVolume(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body []engine.VolumeEntry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pr-review-time",
		Method:      http.MethodGet,
		Path:        "/pr/review-time",
		Summary:     "Hours to merge, per creation date",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.ReviewTime `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rt, err := s.engine.ReviewTime(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body engine.ReviewTime `json:"body"`
		}{Body: rt}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pr-aging",
		Method:      http.MethodGet,
		Path:        "/pr/aging",
		Summary:     "Open pull requests older than two days",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.AgingPR `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		prs, err := s.engine.AgingPRs(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body []engine.AgingPR `json:"body"`
		}{Body: prs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pr-review-load",
		Method:      http.MethodGet,
		Path:        "/pr/review-load",
		Summary:     "Reviews per reviewer, last 30 days",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.ReviewerLoad `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		load, err := s.engine.ReviewLoad(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body []engine.ReviewerLoad `json:"body"`
		}{Body: load}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pr-merge-rate",
		Method:      http.MethodGet,
		Path:        "/pr/merge-rate",
		Summary:     "Merged share of all pull requests",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.MergeRate `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		mr, err := s.engine.MergeRate(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body engine.MergeRate `json:"body"`
		}{Body: mr}, nil
	})
}

func (s *api) registerFlow(api huma.API) {
	type sprintQuery struct {
		SprintID string `query:"sprint_id" doc:"Restrict to one sprint"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "flow-lead-time",
		Method:      http.MethodGet,
		Path:        "/flow/lead-time",
		Summary:     "Creation to deployment hours per task",
	}, func(ctx context.Context, input *sprintQuery) (*struct {
		Body engine.FlowTimes `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ft, err := s.engine.LeadTime(ctx, scope, input.SprintID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body engine.FlowTimes `json:"body"`
		}{Body: ft}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "flow-cycle-time",
		Method:      http.MethodGet,
		Path:        "/flow/cycle-time",
		Summary:     "Start to completion hours per task",
	}, func(ctx context.Context, input *sprintQuery) (*struct {
		Body engine.FlowTimes `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ft, err := s.engine.CycleTime(ctx, scope, input.SprintID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body engine.FlowTimes `json:"body"`
		}{Body: ft}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "flow-throughput",
		Method:      http.MethodGet,
		Path:        "/flow/throughput",
		Summary:     "Completed work per sprint",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.ThroughputEntry `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entries, err := s.engine.Throughput(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body []engine.ThroughputEntry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "flow-wip",
		Method:      http.MethodGet,
		Path:        "/flow/wip",
		Summary:     "Work in progress by status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.WIPSummary `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sum, err := s.engine.WIP(ctx, scope)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body engine.WIPSummary `json:"body"`
		}{Body: sum}, nil
	})

	// Bottlenecks are computed across all workspaces and need no identity.
	huma.Register(api, huma.Operation{
		OperationID: "flow-bottlenecks",
		Method:      http.MethodGet,
		Path:        "/flow/bottlenecks",
		Summary:     "Average dwell time per workflow stage",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.StageReport `json:"body"`
	}, error) {
		reports, err := s.engine.Bottlenecks(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body []engine.StageReport `json:"body"`
		}{Body: reports}, nil
	})
}

func (s *api) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "recent-events",
		Method:      http.MethodGet,
		Path:        "/events/recent",
		Summary:     "Recent audit events for the workspace",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" doc:"Max events to return (default 20)"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		scope, authErr := scopeFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		events, err := s.engine.Repo.LatestEvents(ctx, scope, input.Limit)
		if err != nil {
			return nil, s.handleError(err)
		}
		if events == nil {
			events = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: events}, nil
	})
}
