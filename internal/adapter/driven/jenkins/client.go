// Package jenkins implements the CIRunner port against the Jenkins remote access API.
package jenkins

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CIRunner = (*Client)(nil)

// Job parameter names understood by generated pipelines.
const (
	ParamCommitHash  = "COMMIT_HASH"
	ParamBuildID     = "BUILD_ID"
	ParamGitToken    = "GIT_TOKEN"
	ParamCallbackURL = "CALLBACK_URL"
)

// Client implements driven.CIRunner over HTTP basic auth with an API token.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	token    string
	catalog  *Catalog
}

// NewClient creates a Jenkins client. catalog supplies the pipeline
// templates used by CreateJob.
func NewClient(baseURL, username, token string, timeout time.Duration, catalog *Catalog) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: timeout}, baseURL, username, token, catalog)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, username, token string, catalog *Catalog) *Client {
	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		catalog:  catalog,
	}
}

// Supports reports whether the loaded catalog has a pipeline for stack.
func (c *Client) Supports(stack model.TechStack) bool {
	return c.catalog != nil && c.catalog.Has(stack)
}

// TriggerJob queues a parameterized run of jobName.
func (c *Client) TriggerJob(ctx context.Context, jobName string, params driven.JobParameters) error {
	form := url.Values{}
	form.Set(ParamCommitHash, params.CommitHash)
	form.Set(ParamBuildID, strconv.FormatInt(params.BuildID, 10))
	form.Set(ParamGitToken, params.CheckoutToken)
	form.Set(ParamCallbackURL, params.CallbackURL)

	resp, err := c.post(ctx, c.jobURL(jobName)+"/buildWithParameters",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("trigger job %s: %w", jobName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trigger job %s: %w", jobName, statusError(resp))
	}

	slog.Debug("ci job triggered", "job", jobName, "build_id", params.BuildID, "queue", resp.Header.Get("Location"))

	return nil
}

// CreateJob creates a pipeline job generated for the job's tech stack.
func (c *Client) CreateJob(ctx context.Context, spec driven.JobSpec) error {
	if c.catalog == nil {
		return fmt.Errorf("create job %s: no pipeline catalog configured", spec.Name)
	}

	script, err := c.catalog.Render(spec)
	if err != nil {
		return err
	}

	config, err := JobConfig("Managed by tracklink for "+spec.CloneURL, script)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/createItem?name=" + url.QueryEscape(spec.Name)
	resp, err := c.post(ctx, endpoint, "application/xml", bytes.NewReader(config))
	if err != nil {
		return fmt.Errorf("create job %s: %w", spec.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("create job %s: %w", spec.Name, statusError(resp))
	}

	return nil
}

// DeleteJob deletes jobName. A job that no longer exists is not an error.
func (c *Client) DeleteJob(ctx context.Context, jobName string) error {
	resp, err := c.post(ctx, c.jobURL(jobName)+"/doDelete", "", nil)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", jobName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		return nil
	default:
		return fmt.Errorf("delete job %s: %w", jobName, statusError(resp))
	}
}

func (c *Client) jobURL(jobName string) string {
	return c.baseURL + "/job/" + url.PathEscape(jobName)
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.SetBasicAuth(c.username, c.token)

	return c.http.Do(req)
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
