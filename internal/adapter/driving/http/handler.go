package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ericfisherdev/tracklink/internal/application"
	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// Application services consumed by the HTTP adapter.
type (
	WebhookHandler interface {
		Handle(ctx context.Context, d application.WebhookDelivery) (application.WebhookOutcome, error)
	}

	BuildHandler interface {
		HandleCallback(ctx context.Context, buildID int64, result model.BuildResult) (application.BuildDetail, error)
		Get(ctx context.Context, buildID int64) (*application.BuildDetail, error)
	}

	RepositoryManager interface {
		Register(ctx context.Context, req application.RegisterRequest) (model.Repository, error)
		Unregister(ctx context.Context, fullName string) error
		List(ctx context.Context) ([]model.Repository, error)
		Commits(ctx context.Context, fullName string) ([]model.Commit, error)
	}

	PullRequestReader interface {
		Get(ctx context.Context, repoFullName string, number int) (*application.PRDetail, error)
	}

	TaskTransitioner interface {
		Transition(ctx context.Context, key string, next model.TaskStatus) (model.Task, error)
	}

	Reconciler interface {
		RunOnce(ctx context.Context) (application.ReconcileReport, error)
	}

	HealthChecker interface {
		Check(ctx context.Context) application.HealthReport
	}
)

// Services groups the application services behind the API.
type Services struct {
	Webhooks     WebhookHandler
	Builds       BuildHandler
	Repositories RepositoryManager
	PullRequests PullRequestReader
	Tasks        TaskTransitioner
	Reconciler   Reconciler
	Health       HealthChecker
}

// Handler is the HTTP driving adapter that serves the REST API, the
// provider webhook endpoint and the CI callback endpoint.
type Handler struct {
	svc         Services
	callbackKey string
	validate    *requestValidator
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. callbackKey
// authenticates the CI callback endpoint.
func NewHandler(svc Services, callbackKey string, logger *slog.Logger) *Handler {
	return &Handler{
		svc:         svc,
		callbackKey: callbackKey,
		validate:    newRequestValidator(),
		logger:      logger,
	}
}

// NewRouter creates an http.Handler with all routes registered and wrapped
// with request id, logging and recovery middleware.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(logger))
	// Recovery innermost so panics are caught before logging.
	r.Use(recoveryMiddleware(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/github", h.ReceiveWebhook)
		r.Post("/ci/builds/{id}/callback", h.BuildCallback)

		r.Get("/repos", h.ListRepos)
		r.Post("/repos", h.RegisterRepo)
		r.Delete("/repos/{owner}/{repo}", h.UnregisterRepo)
		r.Get("/repos/{owner}/{repo}/commits", h.ListCommits)
		r.Get("/repos/{owner}/{repo}/pulls/{number}", h.GetPullRequest)

		r.Get("/builds/{id}", h.GetBuild)
		r.Patch("/tasks/{key}/status", h.TransitionTask)
		r.Post("/reconcile", h.Reconcile)
		r.Get("/health", h.Health)
	})

	return r
}

// ListRepos returns all tracked repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.svc.Repositories.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListCommits returns the commits ingested for a repository.
func (h *Handler) ListCommits(w http.ResponseWriter, r *http.Request) {
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")

	commits, err := h.svc.Repositories.Commits(r.Context(), fullName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]CommitResponse, 0, len(commits))
	for _, c := range commits {
		resp = append(resp, toCommitResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RegisterRepo starts tracking a repository.
func (h *Handler) RegisterRepo(w http.ResponseWriter, r *http.Request) {
	var req RegisterRepoRequest
	if !h.decode(w, r, &req) {
		return
	}

	if !isValidRepoName(req.FullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	repo, err := h.svc.Repositories.Register(r.Context(), application.RegisterRequest{
		FullName:  req.FullName,
		CIJobName: req.CIJobName,
		TechStack: model.TechStack(req.TechStack),
		CreatorID: req.CreatorID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(repo))
}

// UnregisterRepo stops tracking a repository and removes its hook and job.
func (h *Handler) UnregisterRepo(w http.ResponseWriter, r *http.Request) {
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")

	if err := h.svc.Repositories.Unregister(r.Context(), fullName); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPullRequest returns a pull request with its linked tasks and its
// description rendered to sanitized HTML.
func (h *Handler) GetPullRequest(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pull request number")
		return
	}

	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")

	detail, err := h.svc.PullRequests.Get(r.Context(), fullName, number)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPRResponse(*detail))
}

// GetBuild returns a build with its deployment.
func (h *Handler) GetBuild(w http.ResponseWriter, r *http.Request) {
	id, ok := buildIDParam(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.Builds.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBuildResponse(*detail))
}

// TransitionTask applies a manual status change through the transition table.
func (h *Handler) TransitionTask(w http.ResponseWriter, r *http.Request) {
	var req TransitionTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.svc.Tasks.Transition(r.Context(), chi.URLParam(r, "key"), model.TaskStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// Reconcile runs one webhook reconciliation pass and reports what it did.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconciler.RunOnce(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ReconcileResponse{
		Candidates: report.Candidates,
		Recreated:  report.Recreated,
		Failed:     report.Failed,
		Errors:     report.Errors,
	})
}

// Health reports database reachability and webhook state counts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Health.Check(r.Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}

	webhooks := make(map[string]int, len(report.Webhooks))
	for state, n := range report.Webhooks {
		webhooks[string(state)] = n
	}

	writeJSON(w, status, HealthResponse{
		Status:   report.Status,
		Database: report.Database,
		Webhooks: webhooks,
		Time:     time.Now().UTC().Format(time.RFC3339),
	})
}

func buildIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid build id")
		return 0, false
	}
	return id, true
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
