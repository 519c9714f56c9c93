// Package client is the Go client of the embedding fetch service.  It posts
// the UMAP point cloud query to the service's GraphQL endpoint and decodes the
// result.  Requests are never retried: a failed fetch is superseded by the
// next parameter change.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/embedscope/pkg/errors"
	"github.com/turtacn/embedscope/pkg/types/embedding"
)

const Version = "0.1.0"

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client talks to one fetch service.
type Client struct {
	baseURL    string
	graphqlURL string
	httpClient *http.Client
	apiKey     string
	userAgent  string
	logger     Logger
}

// APIError is a transport-level or GraphQL-level failure reported by the
// service.
type APIError struct {
	StatusCode int      `json:"status_code"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Path       []string `json:"path,omitempty"`
	RequestID  string   `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedscope: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == CodeNotFound
}

func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// APIError codes set by the client.
const (
	CodeHTTP     = "HTTP_ERROR"
	CodeGraphQL  = "GRAPHQL_ERROR"
	CodeNotFound = "NOT_FOUND"
)

// NewClient creates a client for the service at baseURL.  apiKey may be empty
// for unauthenticated deployments.
func NewClient(baseURL string, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.ErrInvalidConfig.WithDetail("fetch endpoint is empty")
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.ErrInvalidConfig.WithDetail("invalid fetch endpoint").WithCause(err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.ErrInvalidConfig.WithDetail("fetch endpoint scheme must be http or https")
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		graphqlURL: baseURL + "/graphql",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  fmt.Sprintf("embedscope-go/%s", Version),
		logger:     &noopLogger{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

type graphQLRequest struct {
	Query         string      `json:"query"`
	OperationName string      `json:"operationName,omitempty"`
	Variables     interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Execute runs one GraphQL operation and decodes its data into result.
// A non-empty errors array fails the call even if data is present.
func (c *Client) Execute(ctx context.Context, operation, query string, variables interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(graphQLRequest{Query: query, OperationName: operation, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Errorf("%s failed: %v", operation, err)
		return err
	}
	defer resp.Body.Close()

	c.logger.Debugf("POST %s %s %d (%v)", c.graphqlURL, operation, resp.StatusCode, duration)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: CodeHTTP, RequestID: requestID}
		var gqlResp graphQLResponse
		if err := json.Unmarshal(respBody, &gqlResp); err == nil && len(gqlResp.Errors) > 0 {
			apiErr.Code = CodeGraphQL
			apiErr.Message = joinMessages(gqlResp.Errors)
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       CodeGraphQL,
			Message:    joinMessages(gqlResp.Errors),
			Path:       pathStrings(gqlResp.Errors[0].Path),
			RequestID:  requestID,
		}
	}
	if result != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}
	return nil
}

// FetchUMAPPoints runs the point cloud query with params.
func (c *Client) FetchUMAPPoints(ctx context.Context, params embedding.QueryParams) (*embedding.UMAPPoints, error) {
	var data struct {
		Embedding *struct {
			UMAPPoints *embedding.UMAPPoints `json:"UMAPPoints"`
		} `json:"embedding"`
	}
	if err := c.Execute(ctx, UMAPQueryOperation, UMAPQuery, params, &data); err != nil {
		return nil, err
	}
	if data.Embedding == nil || data.Embedding.UMAPPoints == nil {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Code:       CodeNotFound,
			Message:    fmt.Sprintf("embedding dimension %q not found", params.EmbeddingID),
		}
	}
	return data.Embedding.UMAPPoints, nil
}

func joinMessages(errs []graphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func pathStrings(path []interface{}) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = fmt.Sprint(p)
	}
	return out
}
