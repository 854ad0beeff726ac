// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

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

	"github.com/churchops/datapilot/shared/logger"
)

// ApiExecutor issues the selected HTTP call against the resolved downstream
// service. All failure modes (missing token, unknown service, network or
// HTTP errors) become an error-status ApiCallResult; Execute never returns
// an error value.
type ApiExecutor struct {
	config     ExecutorConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewApiExecutor creates an executor with the given endpoint table.
func NewApiExecutor(config ExecutorConfig, log *logger.Logger) *ApiExecutor {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 12 * time.Second
	}
	return &ApiExecutor{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log,
	}
}

// Execute runs the route call with a caller-supplied per-service bearer
// token map keyed by lower-cased canonical service name.
func (e *ApiExecutor) Execute(ctx context.Context, match RouteMatch, tokensByService map[string]string) ApiCallResult {
	service := e.canonicalService(match.Route.Service)

	baseURL, ok := e.config.ServiceURLs[service]
	if !ok {
		return errorResult(match, fmt.Sprintf("unknown service %q: no base URL configured", match.Route.Service))
	}

	token, ok := tokensByService[service]
	if !ok || token == "" {
		return errorResult(match, fmt.Sprintf("no token supplied for service %q", service))
	}

	req, err := e.buildRequest(ctx, baseURL, match, token)
	if err != nil {
		return errorResult(match, fmt.Sprintf("failed to build request: %v", err))
	}

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.log.Warn("", "downstream call failed", map[string]interface{}{
			"service": service,
			"path":    match.Route.Path,
			"error":   err.Error(),
		})
		return errorResult(match, fmt.Sprintf("downstream request failed: %v", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(match, fmt.Sprintf("failed to read downstream response: %v", err))
	}

	if resp.StatusCode >= 400 {
		message := downstreamErrorMessage(body)
		if message == "" {
			message = fmt.Sprintf("downstream returned status %d", resp.StatusCode)
		}
		return errorResult(match, message)
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		// Non-JSON bodies are kept as raw text
		data = string(body)
	}

	e.log.InfoWithDuration("", "downstream call succeeded", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"service": service,
		"method":  match.Route.Method,
		"path":    match.Route.Path,
		"status":  resp.StatusCode,
	})

	return ApiCallResult{
		Route:  match,
		Data:   data,
		Status: CallSuccess,
	}
}

// buildRequest assembles the HTTP request: query parameters for GET, a JSON
// body for mutating methods.
func (e *ApiExecutor) buildRequest(ctx context.Context, baseURL string, match RouteMatch, token string) (*http.Request, error) {
	method := strings.ToUpper(match.Route.Method)
	endpoint := strings.TrimRight(baseURL, "/") + match.Route.Path

	var body io.Reader
	if method != "GET" && match.Parameters.Body != nil {
		payload, err := json.Marshal(match.Parameters.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	if method == "GET" && len(match.Parameters.Query) > 0 {
		query := url.Values{}
		for key, value := range match.Parameters.Query {
			query.Set(key, value)
		}
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// canonicalService lower-cases the catalog service name and resolves
// configured aliases to the token-map key.
func (e *ApiExecutor) canonicalService(service string) string {
	lower := strings.ToLower(service)
	if canonical, ok := e.config.ServiceAliases[lower]; ok {
		return canonical
	}
	return lower
}

// downstreamErrorMessage pulls a human-readable message out of a JSON error
// body when one is present.
func downstreamErrorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

func errorResult(match RouteMatch, message string) ApiCallResult {
	return ApiCallResult{
		Route:  match,
		Status: CallError,
		Error:  message,
	}
}
