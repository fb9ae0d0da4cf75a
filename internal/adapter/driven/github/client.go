// Package github implements the SourceControl and WebhookCodec ports using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SourceControl = (*Client)(nil)

const defaultBaseURL = "https://api.github.com/"

// Client implements the driven.SourceControl port. Every call is made with
// the token of the user who owns the repository, so the client holds the
// shared transport stack and builds a token-scoped go-github client per call.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	timeout time.Duration
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. oauth2 static token source (per-user bearer auth)
//  4. go-github (GitHub REST API client)
//
// An empty baseURL selects the public GitHub API.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	return newClient(rateLimitClient, baseURL, timeout)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	return newClient(httpClient, baseURL, 0)
}

func newClient(httpClient *http.Client, baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Client{http: httpClient, baseURL: u, timeout: timeout}, nil
}

// api returns a go-github client that authenticates as token.
func (c *Client) api(ctx context.Context, token string) *gh.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = c.timeout

	client := gh.NewClient(httpClient)
	client.BaseURL = c.baseURL
	return client
}

// GetRepository fetches the provider's view of a repository.
func (c *Client) GetRepository(ctx context.Context, token, repoFullName string) (*driven.RemoteRepository, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	r, resp, err := c.api(ctx, token).Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("getting repository %s: %w", repoFullName, err)
	}

	logRateLimit(resp, repoFullName)

	return &driven.RemoteRepository{
		FullName:      r.GetFullName(),
		DefaultBranch: r.GetDefaultBranch(),
		CloneURL:      r.GetCloneURL(),
		Private:       r.GetPrivate(),
	}, nil
}

// CreateWebhook registers a JSON webhook on the repository and returns its id.
func (c *Client) CreateWebhook(ctx context.Context, token string, req driven.WebhookRequest) (int64, error) {
	owner, repo, err := splitRepo(req.RepoFullName)
	if err != nil {
		return 0, err
	}

	events := req.Events
	if len(events) == 0 {
		events = []string{"push", "pull_request"}
	}

	hook := &gh.Hook{
		Name:   gh.Ptr("web"),
		Active: gh.Ptr(true),
		Events: events,
		Config: &gh.HookConfig{
			URL:         gh.Ptr(req.CallbackURL),
			ContentType: gh.Ptr("json"),
			Secret:      gh.Ptr(req.Secret),
			InsecureSSL: gh.Ptr("0"),
		},
	}

	created, resp, err := c.api(ctx, token).Repositories.CreateHook(ctx, owner, repo, hook)
	if err != nil {
		return 0, fmt.Errorf("creating webhook on %s: %w", req.RepoFullName, err)
	}

	logRateLimit(resp, req.RepoFullName+"/hooks")

	return created.GetID(), nil
}

// DeleteWebhook removes a webhook. A hook the provider no longer knows
// yields driven.ErrWebhookNotFound.
func (c *Client) DeleteWebhook(ctx context.Context, token, repoFullName string, hookID int64) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	resp, err := c.api(ctx, token).Repositories.DeleteHook(ctx, owner, repo, hookID)
	if err != nil {
		if isNotFound(resp, err) {
			return fmt.Errorf("deleting webhook %d on %s: %w", hookID, repoFullName, driven.ErrWebhookNotFound)
		}
		return fmt.Errorf("deleting webhook %d on %s: %w", hookID, repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/hooks")

	return nil
}

func isNotFound(resp *gh.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}

	var errResp *gh.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
