// Package httpcall provides the network call action for workflow execution.
package httpcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// HTTPCallAction performs a single HTTP request. Configuration arrives
// already template-rendered from the action node.
type HTTPCallAction struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string

	client *http.Client
}

// NewHTTPCallAction creates a new HTTP call action from rendered config.
func NewHTTPCallAction(config map[string]any) (*HTTPCallAction, error) {
	action := &HTTPCallAction{
		Method:  "GET",
		Headers: make(map[string]string),
		client:  &http.Client{},
	}

	if url, ok := config["url"].(string); ok && url != "" {
		action.URL = url
	} else {
		return nil, errors.New("missing required field 'url'")
	}

	if method, ok := config["method"].(string); ok {
		action.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if headerValue, ok := v.(string); ok {
				action.Headers[k] = headerValue
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		action.Body = body
	}

	return action, nil
}

// Execute performs the request and returns the response as the result data.
func (a *HTTPCallAction) Execute(ctx context.Context, _ *models.ExecutionContext, logger *slog.Logger) (*protocol.Result, error) {
	var reqBody io.Reader
	if a.Body != "" {
		reqBody = strings.NewReader(a.Body)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	if a.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.InfoContext(ctx, "Performing HTTP call", "method", a.Method, "url", a.URL)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	data := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		data["json"] = jsonBody
	}

	return &protocol.Result{
		Data:          data,
		ExternalCalls: 1,
	}, nil
}
