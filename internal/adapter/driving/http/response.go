package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ericfisherdev/tracklink/internal/application"
	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps application and store errors to a status code.
// Unrecognized errors are logged and answered with a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *model.InvalidTransitionError

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, invalid.Error())
	case errors.Is(err, driven.ErrTaskStatusConflict),
		errors.Is(err, driven.ErrBuildFinalized),
		errors.Is(err, driven.ErrDeploymentExists),
		errors.Is(err, driven.ErrRepoAlreadyExists),
		errors.Is(err, driven.ErrLeaseHeld):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, driven.ErrRepoNotFound),
		errors.Is(err, driven.ErrBuildNotFound),
		errors.Is(err, application.ErrTaskNotFound),
		errors.Is(err, application.ErrPullRequestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrMalformedPayload),
		errors.Is(err, application.ErrInvalidBuildResult),
		errors.Is(err, application.ErrMissingCredential),
		errors.Is(err, application.ErrUnsupportedTechStack),
		errors.Is(err, application.ErrUnknownTaskStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AckResponse acknowledges a webhook delivery.
type AckResponse struct {
	Status string `json:"status"`
}

// RegisterRepoRequest is the request body for POST /api/v1/repos.
type RegisterRepoRequest struct {
	FullName  string `json:"full_name" validate:"required"`
	CIJobName string `json:"ci_job_name" validate:"omitempty,max=200"`
	TechStack string `json:"tech_stack" validate:"required,max=50"`
	CreatorID int64  `json:"creator_id" validate:"required,gt=0"`
}

// TransitionTaskRequest is the request body for PATCH /api/v1/tasks/{key}/status.
type TransitionTaskRequest struct {
	Status string `json:"status" validate:"required,task_status"`
}

// BuildCallbackRequest is the body the CI job posts when it finishes.
type BuildCallbackRequest struct {
	Status        string     `json:"status" validate:"required,oneof=SUCCESS FAILED"`
	BuildNumber   *int       `json:"build_number" validate:"omitempty,gte=0"`
	FinishedAt    *time.Time `json:"finished_at"`
	ConsoleOutput *string    `json:"console_output"`
}

// RepoResponse is the JSON representation of a tracked repository.
type RepoResponse struct {
	ID                int64  `json:"id"`
	FullName          string `json:"full_name"`
	DefaultBranch     string `json:"default_branch"`
	WebhookID         *int64 `json:"webhook_id"`
	WebhookState      string `json:"webhook_state"`
	WebhookRetryCount int    `json:"webhook_retry_count"`
	CIJobName         string `json:"ci_job_name"`
	TechStack         string `json:"tech_stack"`
	CreatedBy         *int64 `json:"created_by"`
	CreatedAt         string `json:"created_at"`
}

// PRResponse is the JSON representation of a pull request.
type PRResponse struct {
	Number          int      `json:"number"`
	Repository      string   `json:"repository"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	URL             string   `json:"url"`
	SourceBranch    string   `json:"source_branch"`
	Description     string   `json:"description"`
	DescriptionHTML string   `json:"description_html"`
	MergeCommitSHA  string   `json:"merge_commit_sha,omitempty"`
	CreatedBy       *int64   `json:"created_by"`
	OpenedAt        string   `json:"opened_at"`
	MergedAt        *string  `json:"merged_at"`
	TaskKeys        []string `json:"task_keys"`
}

// BuildResponse is the JSON representation of a build and its deployment.
type BuildResponse struct {
	ID            int64               `json:"id"`
	RepoID        int64               `json:"repo_id"`
	CommitHash    string              `json:"commit_hash"`
	JobName       string              `json:"job_name"`
	BuildNumber   *int                `json:"build_number"`
	Status        string              `json:"status"`
	ConsoleOutput *string             `json:"console_output,omitempty"`
	TriggeredBy   *int64              `json:"triggered_by"`
	StartedAt     string              `json:"started_at"`
	FinishedAt    *string             `json:"finished_at"`
	Deployment    *DeploymentResponse `json:"deployment"`
}

// DeploymentResponse is the JSON representation of a deployment.
type DeploymentResponse struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	DeployedBy *int64 `json:"deployed_by"`
	CreatedAt  string `json:"created_at"`
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	AllowedNext []string `json:"allowed_next"`
}

// CommitResponse is the JSON representation of an ingested commit.
type CommitResponse struct {
	Hash        string `json:"hash"`
	Message     string `json:"message"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	AuthorID    *int64 `json:"author_id"`
	TaskID      *int64 `json:"task_id"`
	CommittedAt string `json:"committed_at"`
}

// ReconcileResponse reports a manual reconciliation run.
type ReconcileResponse struct {
	Candidates int `json:"candidates"`
	Recreated  int `json:"recreated"`
	Failed     int `json:"failed"`
	Errors     int `json:"errors"`
}

// HealthResponse is the JSON response for the health check endpoint.
type HealthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Webhooks map[string]int `json:"webhooks,omitempty"`
	Time     string         `json:"time"`
}

func toRepoResponse(r model.Repository) RepoResponse {
	return RepoResponse{
		ID:                r.ID,
		FullName:          r.FullName,
		DefaultBranch:     r.DefaultBranch,
		WebhookID:         r.WebhookID,
		WebhookState:      string(r.WebhookState),
		WebhookRetryCount: r.WebhookRetryCount,
		CIJobName:         r.CIJobName,
		TechStack:         string(r.TechStack),
		CreatedBy:         r.CreatedBy,
		CreatedAt:         formatTime(r.CreatedAt),
	}
}

func toPRResponse(d application.PRDetail) PRResponse {
	pr := d.PullRequest

	keys := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		keys = append(keys, t.Key)
	}

	return PRResponse{
		Number:          pr.Number,
		Repository:      d.Repository.FullName,
		Title:           pr.Title,
		Status:          string(pr.Status),
		URL:             pr.URL,
		SourceBranch:    pr.SourceBranch,
		Description:     pr.Description,
		DescriptionHTML: renderMarkdown(pr.Description),
		MergeCommitSHA:  pr.MergeCommitSHA,
		CreatedBy:       pr.CreatedBy,
		OpenedAt:        formatTime(pr.OpenedAt),
		MergedAt:        formatTimePtr(pr.MergedAt),
		TaskKeys:        keys,
	}
}

func toBuildResponse(d application.BuildDetail) BuildResponse {
	b := d.Build

	resp := BuildResponse{
		ID:            b.ID,
		RepoID:        b.RepoID,
		CommitHash:    b.CommitHash,
		JobName:       b.JobName,
		BuildNumber:   b.BuildNumber,
		Status:        string(b.Status),
		ConsoleOutput: b.ConsoleOutput,
		TriggeredBy:   b.TriggeredBy,
		StartedAt:     formatTime(b.StartedAt),
		FinishedAt:    formatTimePtr(b.FinishedAt),
	}

	if d.Deployment != nil {
		resp.Deployment = &DeploymentResponse{
			ID:         d.Deployment.ID,
			Status:     string(d.Deployment.Status),
			DeployedBy: d.Deployment.DeployedBy,
			CreatedAt:  formatTime(d.Deployment.CreatedAt),
		}
	}

	return resp
}

func toTaskResponse(t model.Task) TaskResponse {
	next := t.Status.AllowedNext()
	allowed := make([]string, 0, len(next))
	for _, s := range next {
		allowed = append(allowed, string(s))
	}
	return TaskResponse{Key: t.Key, Title: t.Title, Status: string(t.Status), AllowedNext: allowed}
}

func toCommitResponse(c model.Commit) CommitResponse {
	return CommitResponse{
		Hash:        c.Hash,
		Message:     c.Message,
		AuthorName:  c.AuthorName,
		AuthorEmail: c.AuthorEmail,
		AuthorID:    c.AuthorID,
		TaskID:      c.TaskID,
		CommittedAt: formatTime(c.CommittedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
