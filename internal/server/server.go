package server

import (
	"bytes"
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

	"slipline/internal/domain"
	"slipline/internal/engine"
	"slipline/internal/repo"
	"slipline/internal/schedule"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"cycle_detected"`
	Message string         `json:"message" example:"dependency would create a circular chain"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"required_roles\":[\"lead_project_manager\"]}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Slipline API. The context bounds
// the lifetime of background webhook delivery; cancel it on shutdown.
func New(ctx context.Context, cfg Config) (http.Handler, error) {
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
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Slipline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStakeholders(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerPhases(group, cfg.Engine)
	registerStages(group, cfg.Engine)
	registerDependencies(group, cfg.Engine)
	registerBaselines(group, cfg.Engine)
	registerChangeRequests(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startNotificationDispatcher(ctx, cfg.Engine)

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
	var re *schedule.RoleError
	if errors.As(err, &re) {
		return newAPIError(http.StatusForbidden, "forbidden_role", err.Error(), map[string]any{"required_roles": re.Required})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, schedule.ErrWrongApprover):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, schedule.ErrCycleDetected):
		return newAPIError(http.StatusConflict, "cycle_detected", err.Error(), nil)
	case errors.Is(err, schedule.ErrDuplicateEdge),
		errors.Is(err, schedule.ErrDuplicateRole),
		errors.Is(err, schedule.ErrBaselineAlreadyExists),
		errors.Is(err, schedule.ErrNotPending):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, schedule.ErrChangeRequestNotApproved),
		errors.Is(err, schedule.ErrWrongChangeType),
		errors.Is(err, schedule.ErrNoActiveBaseline),
		errors.Is(err, schedule.ErrPhaseHasActuals),
		errors.Is(err, schedule.ErrIncompleteActuals),
		errors.Is(err, schedule.ErrMissingReviewComments):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
	case errors.Is(err, schedule.ErrInvalidEdge),
		errors.Is(err, schedule.ErrInvalidProgress),
		errors.Is(err, schedule.ErrInvalidDateOrdering),
		errors.Is(err, schedule.ErrEndWithoutStart),
		errors.Is(err, schedule.ErrEmptyReason),
		errors.Is(err, schedule.ErrOrderingMismatch),
		errors.Is(err, schedule.ErrUnknownEnum):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
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
	case http.StatusForbidden:
		return "forbidden"
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
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Slipline API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
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
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStakeholders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-stakeholder",
		Method:      http.MethodPost,
		Path:        "/stakeholders",
		Summary:     "Register a stakeholder",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateStakeholderRequest `json:"body"`
	}) (*struct {
		Body domain.Stakeholder `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		s, err := e.CreateStakeholder(ctx, input.Body.FullName, input.Body.Email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stakeholder `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stakeholders",
		Method:      http.MethodGet,
		Path:        "/stakeholders",
		Summary:     "List stakeholders",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Stakeholder `json:"body"`
	}, error) {
		items, err := e.Repo.ListStakeholders(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Stakeholder `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stakeholder",
		Method:      http.MethodGet,
		Path:        "/stakeholders/{stakeholder_id}",
		Summary:     "Get stakeholder",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StakeholderID string `path:"stakeholder_id"`
	}) (*struct {
		Body domain.Stakeholder `json:"body"`
	}, error) {
		s, err := e.Repo.GetStakeholder(ctx, input.StakeholderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stakeholder `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stakeholder-notifications",
		Method:      http.MethodGet,
		Path:        "/stakeholders/{stakeholder_id}/notifications",
		Summary:     "List notifications delivered to a stakeholder",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StakeholderID string `path:"stakeholder_id"`
	}) (*struct {
		Body []domain.Notification `json:"body"`
	}, error) {
		if _, err := e.Repo.GetStakeholder(ctx, input.StakeholderID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListNotificationsForStakeholder(ctx, input.StakeholderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Notification `json:"body"`
		}{Body: items}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      http.MethodPost,
		Path:        "/projects",
		Summary:     "Create a hull fabrication project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:               strOrEmpty(input.Body.ID),
			Name:             input.Body.Name,
			Description:      strOrEmpty(input.Body.Description),
			ShipyardName:     strOrEmpty(input.Body.ShipyardName),
			VesselType:       strOrEmpty(input.Body.VesselType),
			PlannedStartDate: input.Body.PlannedStartDate,
			PlannedEndDate:   input.Body.PlannedEndDate,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project schedule fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ProjectID:        input.ProjectID,
			Name:             input.Body.Name,
			Description:      input.Body.Description,
			PlannedStartDate: input.Body.PlannedStartDate,
			PlannedEndDate:   input.Body.PlannedEndDate,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-status",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/status",
		Summary:     "Project schedule summary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		report, err := e.Deviations(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"project_id":                   p.ID,
			"name":                         p.Name,
			"overall_progress_pct":         p.OverallProgressPct,
			"total_planned_duration_days":  p.TotalPlannedDurationDays,
			"total_actual_duration_days":   p.TotalActualDurationDays,
			"total_baseline_duration_days": p.TotalBaselineDurationDays,
			"active_baseline_id":           p.ActiveBaselineID,
			"stages_on_baseline":           report.OnBaseline,
			"stages_ahead":                 report.Ahead,
			"stages_delayed":               report.Delayed,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-gantt",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/gantt",
		Summary:     "Full Gantt view: phases, stages, dependencies and deviations",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.GanttView `json:"body"`
	}, error) {
		view, err := e.Gantt(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.GanttView `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-stakeholder",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/stakeholders",
		Summary:     "Assign a stakeholder role on a project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                   `path:"project_id"`
		Body      AssignStakeholderRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectStakeholder `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		ps, err := e.AssignStakeholder(ctx, input.ProjectID, input.Body.StakeholderID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectStakeholder `json:"body"`
		}{Body: ps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-stakeholders",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/stakeholders",
		Summary:     "List stakeholder role assignments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.ProjectStakeholder `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAssignments(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ProjectStakeholder `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-stakeholder",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/stakeholders/{stakeholder_id}",
		Summary:     "Remove a stakeholder role assignment",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID     string `path:"project_id"`
		StakeholderID string `path:"stakeholder_id"`
		Role          string `query:"role"`
	}) (*struct{}, error) {
		if input.Role == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "role query parameter is required", nil)
		}
		if err := e.RemoveStakeholder(ctx, input.ProjectID, input.StakeholderID, input.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-audit-trail",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/audit-trail",
		Summary:     "List baseline audit trail entries",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.AuditTrailEntry `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAuditTrail(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AuditTrailEntry `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-audit-trail",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/audit-trail/export",
		Summary:     "Export the audit trail as flat rows",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []map[string]any `json:"body"`
	}, error) {
		rows, err := e.ExportAuditTrail(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []map[string]any `json:"body"`
		}{Body: rows}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-deviations",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/deviations",
		Summary:     "Stage deviations against the active baseline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.DeviationReport `json:"body"`
	}, error) {
		report, err := e.Deviations(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.DeviationReport `json:"body"`
		}{Body: report}, nil
	})
}

func registerPhases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-phase",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/phases",
		Summary:     "Add a phase",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string             `path:"project_id"`
		Body      CreatePhaseRequest `json:"body"`
	}) (*struct {
		Body domain.Phase `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.AddPhase(ctx, engine.PhaseAddOptions{
			ProjectID:   input.ProjectID,
			Name:        input.Body.Name,
			Description: strOrEmpty(input.Body.Description),
			Position:    intOrZero(input.Body.Position),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Phase `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-phases",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/phases",
		Summary:     "List phases in position order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Phase `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListPhases(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Phase `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-phases",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/phases/order",
		Summary:     "Reorder phases",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      ReorderPhasesRequest `json:"body"`
	}) (*struct {
		Body []domain.Phase `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ReorderPhases(ctx, input.ProjectID, input.Body.OrderedIDs, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Phase `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-phase",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/phases/{phase_id}",
		Summary:     "Remove a phase without recorded actuals",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		PhaseID   string `path:"phase_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemovePhase(ctx, input.ProjectID, input.PhaseID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerStages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-stage",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/stages",
		Summary:     "Add a stage to a phase",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string             `path:"project_id"`
		Body      CreateStageRequest `json:"body"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.AddStage(ctx, engine.StageAddOptions{
			ProjectID:        input.ProjectID,
			PhaseID:          input.Body.PhaseID,
			Name:             input.Body.Name,
			Description:      strOrEmpty(input.Body.Description),
			Position:         intOrZero(input.Body.Position),
			PlannedStartDate: input.Body.PlannedStartDate,
			PlannedEndDate:   input.Body.PlannedEndDate,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/stages",
		Summary:     "List stages",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		PhaseID   string `query:"phase_id"`
	}) (*struct {
		Body []domain.Stage `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		var items []domain.Stage
		var err error
		if input.PhaseID != "" {
			items, err = e.Repo.ListStagesByPhase(ctx, input.PhaseID)
		} else {
			items, err = e.Repo.ListStages(ctx, input.ProjectID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Stage `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stage",
		Method:      http.MethodGet,
		Path:        "/stages/{stage_id}",
		Summary:     "Get stage",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StageID string `path:"stage_id"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		s, err := e.Repo.GetStage(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stage-schedule",
		Method:      http.MethodPatch,
		Path:        "/stages/{stage_id}/schedule",
		Summary:     "Rewrite a stage's planned dates",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		StageID string                     `path:"stage_id"`
		Body    UpdateStageScheduleRequest `json:"body"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateStageSchedule(ctx, engine.StageScheduleOptions{
			StageID:          input.StageID,
			PlannedStartDate: input.Body.PlannedStartDate,
			PlannedEndDate:   input.Body.PlannedEndDate,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-progress",
		Method:      http.MethodPost,
		Path:        "/stages/{stage_id}/progress",
		Summary:     "Record a stage progress update",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		StageID string          `path:"stage_id"`
		Body    ProgressRequest `json:"body"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.RecordProgress(ctx, engine.ProgressOptions{
			StageID:         input.StageID,
			Status:          input.Body.Status,
			ProgressPct:     input.Body.ProgressPct,
			ActualStartDate: input.Body.ActualStartDate,
			ActualEndDate:   input.Body.ActualEndDate,
			Comments:        strOrEmpty(input.Body.Comments),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stage-updates",
		Method:      http.MethodGet,
		Path:        "/stages/{stage_id}/updates",
		Summary:     "List a stage's progress history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StageID string `path:"stage_id"`
	}) (*struct {
		Body []domain.StageStatusUpdate `json:"body"`
	}, error) {
		if _, err := e.Repo.GetStage(ctx, input.StageID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListStatusUpdates(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.StageStatusUpdate `json:"body"`
		}{Body: items}, nil
	})
}

func registerDependencies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-dependency",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/dependencies",
		Summary:     "Add a finish-to-start stage dependency",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                  `path:"project_id"`
		Body      CreateDependencyRequest `json:"body"`
	}) (*struct {
		Body domain.StageDependency `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.AddDependency(ctx, input.ProjectID, input.Body.PredecessorStageID, input.Body.SuccessorStageID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StageDependency `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-dependencies",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/dependencies",
		Summary:     "List stage dependencies",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.StageDependency `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListDependencies(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.StageDependency `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-dependency",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/dependencies/{predecessor_id}/{successor_id}",
		Summary:     "Remove a stage dependency",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID     string `path:"project_id"`
		PredecessorID string `path:"predecessor_id"`
		SuccessorID   string `path:"successor_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveDependency(ctx, input.ProjectID, input.PredecessorID, input.SuccessorID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerBaselines(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "set-initial-baseline",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/baselines/initial",
		Summary:     "Strike the version-1 baseline",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string          `path:"project_id"`
		Body      BaselineRequest `json:"body"`
	}) (*struct {
		Body domain.Baseline `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.SetInitialBaseline(ctx, engine.BaselineOptions{
			ProjectID:       input.ProjectID,
			ChangeRequestID: input.Body.ChangeRequestID,
			Notes:           strOrEmpty(input.Body.Notes),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Baseline `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-baseline",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/baselines/reset",
		Summary:     "Supersede the active baseline with the next version",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string          `path:"project_id"`
		Body      BaselineRequest `json:"body"`
	}) (*struct {
		Body domain.Baseline `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.ResetBaseline(ctx, engine.BaselineOptions{
			ProjectID:       input.ProjectID,
			ChangeRequestID: input.Body.ChangeRequestID,
			Notes:           strOrEmpty(input.Body.Notes),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Baseline `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-baselines",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/baselines",
		Summary:     "List baseline versions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Baseline `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListBaselines(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Baseline `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baseline-report",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/baselines/report",
		Summary:     "Structured report over the active baseline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.BaselineReport `json:"body"`
	}, error) {
		report, err := e.GenerateBaselineReport(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.BaselineReport `json:"body"`
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-baseline-snapshots",
		Method:      http.MethodGet,
		Path:        "/baselines/{baseline_id}/snapshots",
		Summary:     "List the stage snapshots of one baseline version",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BaselineID string `path:"baseline_id"`
	}) (*struct {
		Body []domain.BaselineStageSnapshot `json:"body"`
	}, error) {
		if _, err := e.Repo.GetBaseline(ctx, input.BaselineID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListSnapshots(ctx, input.BaselineID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.BaselineStageSnapshot `json:"body"`
		}{Body: items}, nil
	})
}

func registerChangeRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-change-request",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/change-requests",
		Summary:     "Submit a change request",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                     `path:"project_id"`
		Body      SubmitChangeRequestRequest `json:"body"`
	}) (*struct {
		Body domain.ChangeRequest `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cr, err := e.SubmitChangeRequest(ctx, engine.ChangeSubmitOptions{
			ProjectID:           input.ProjectID,
			ApproverID:          input.Body.ApproverID,
			ChangeType:          input.Body.ChangeType,
			Reason:              input.Body.Reason,
			ScheduleImpactDays:  intOrZero(input.Body.ScheduleImpactDays),
			CostImpact:          input.Body.CostImpact,
			StakeholderComments: strOrEmpty(input.Body.StakeholderComments),
			ActorID:             actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ChangeRequest `json:"body"`
		}{Body: cr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-change-requests",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/change-requests",
		Summary:     "List change requests",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status"`
	}) (*struct {
		Body []domain.ChangeRequest `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListChangeRequests(ctx, input.ProjectID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ChangeRequest `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-change-request",
		Method:      http.MethodGet,
		Path:        "/change-requests/{change_request_id}",
		Summary:     "Get change request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ChangeRequestID string `path:"change_request_id"`
	}) (*struct {
		Body domain.ChangeRequest `json:"body"`
	}, error) {
		cr, err := e.Repo.GetChangeRequest(ctx, input.ChangeRequestID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ChangeRequest `json:"body"`
		}{Body: cr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-change-request",
		Method:      http.MethodPost,
		Path:        "/change-requests/{change_request_id}/approve",
		Summary:     "Approve a pending change request",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ChangeRequestID string                     `path:"change_request_id"`
		Body            ReviewChangeRequestRequest `json:"body"`
	}) (*struct {
		Body domain.ChangeRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cr, err := e.ApproveChangeRequest(ctx, input.ChangeRequestID, actorID, input.Body.Comments)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ChangeRequest `json:"body"`
		}{Body: cr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-change-request",
		Method:      http.MethodPost,
		Path:        "/change-requests/{change_request_id}/reject",
		Summary:     "Reject a pending change request",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ChangeRequestID string                     `path:"change_request_id"`
		Body            ReviewChangeRequestRequest `json:"body"`
	}) (*struct {
		Body domain.ChangeRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cr, err := e.RejectChangeRequest(ctx, input.ChangeRequestID, actorID, input.Body.Comments)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ChangeRequest `json:"body"`
		}{Body: cr}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-project-notifications",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/notifications",
		Summary:     "List notifications broadcast for a project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Notification `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListNotificationsForProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Notification `json:"body"`
		}{Body: items}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	r, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || r == nil || r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewBuffer(data))
	return data
}
