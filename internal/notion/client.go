// Package notion implements the remote collaborators the wizard core
// consumes: workspace search, resource lookup and session authorization,
// all over the Notion HTTP API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stocksetup/pkg/contracts/domain"
)

const (
	// DefaultBaseURL is the public Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com"
	// DefaultAPIVersion pins the Notion-Version header.
	DefaultAPIVersion = "2022-06-28"

	searchPageSize = 100
)

// Options configures the client.
type Options struct {
	BaseURL    string
	APIVersion string
	Token      string
	Timeout    time.Duration
}

// Client talks to the Notion API. It implements setup.SearchProvider and
// setup.ResourceValidator, and resolves bearer tokens to workspace users for
// the auth middleware.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	token      string
	logger     *slog.Logger
}

// NewClient creates a Notion API client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiVersion: opts.APIVersion,
		token:      opts.Token,
		logger:     logger.With(slog.String("component", "notion_client")),
	}
}

type searchRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type searchResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

type searchObject struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	Title  []struct {
		PlainText string `json:"plain_text"`
	} `json:"title"`
	Properties map[string]struct {
		Type  string `json:"type"`
		Title []struct {
			PlainText string `json:"plain_text"`
		} `json:"title"`
	} `json:"properties"`
	URL string `json:"url"`
}

type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Search lists every database and page shared with the integration. The
// userID parameter identifies the session for logging; the workspace scope
// comes from the integration token.
func (c *Client) Search(ctx context.Context, userID string) ([]domain.SearchResult, error) {
	var out []domain.SearchResult
	cursor := ""
	for {
		body, err := json.Marshal(searchRequest{PageSize: searchPageSize, StartCursor: cursor})
		if err != nil {
			return nil, err
		}

		var page searchResponse
		if err := c.do(ctx, http.MethodPost, "/v1/search", bytes.NewReader(body), &page); err != nil {
			return nil, fmt.Errorf("workspace search: %w", err)
		}

		for _, raw := range page.Results {
			var obj searchObject
			if err := json.Unmarshal(raw, &obj); err != nil {
				continue
			}
			result, ok := toSearchResult(obj)
			if ok {
				out = append(out, result)
			}
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.logger.DebugContext(ctx, "workspace search completed",
		slog.String("user_id", userID),
		slog.Int("results", len(out)))
	return out, nil
}

func toSearchResult(obj searchObject) (domain.SearchResult, bool) {
	var kind domain.ResourceKind
	switch obj.Object {
	case "database":
		kind = domain.KindDatabase
	case "page":
		kind = domain.KindPage
	default:
		return domain.SearchResult{}, false
	}

	title := ""
	for _, t := range obj.Title {
		title += t.PlainText
	}
	if title == "" {
		// Pages carry their title inside the title-typed property.
		for _, prop := range obj.Properties {
			if prop.Type != "title" {
				continue
			}
			for _, t := range prop.Title {
				title += t.PlainText
			}
			break
		}
	}

	result := domain.SearchResult{ID: obj.ID, Title: title, Kind: kind}
	if obj.URL != "" {
		result.Metadata = map[string]string{"url": obj.URL}
	}
	return result, true
}

// Lookup confirms an identifier exists and is of the expected kind. A
// resource reachable through the endpoint for the other kind reports
// wrong_kind so the gate can name the field precisely.
func (c *Client) Lookup(ctx context.Context, id string, kind domain.ResourceKind) (domain.LookupStatus, error) {
	status, err := c.probe(ctx, kind, id)
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		return domain.LookupFound, nil
	}

	other := domain.KindPage
	if kind == domain.KindPage {
		other = domain.KindDatabase
	}
	otherStatus, err := c.probe(ctx, other, id)
	if err != nil {
		return "", err
	}
	if otherStatus == http.StatusOK {
		return domain.LookupWrongKind, nil
	}
	return domain.LookupNotFound, nil
}

// probe issues a retrieval for the given kind and returns the HTTP status.
// 404 and 400 (malformed identifier) are expected outcomes, not errors.
func (c *Client) probe(ctx context.Context, kind domain.ResourceKind, id string) (int, error) {
	path := "/v1/pages/" + id
	if kind == domain.KindDatabase {
		path = "/v1/databases/" + id
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	c.setHeaders(req, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("resource lookup: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusBadRequest:
		return resp.StatusCode, nil
	default:
		return 0, fmt.Errorf("resource lookup: unexpected status %d", resp.StatusCode)
	}
}

// ResolveUser resolves a bearer token to the workspace user it authorizes.
// Used by the auth middleware as the step-1 precondition.
func (c *Client) ResolveUser(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/users/me", nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authorization check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authorization check: status %d", resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("authorization check: %w", err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("authorization check: empty user id")
	}
	return user.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.setHeaders(req, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return fmt.Errorf("status %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
}
