// Package confluence is the REST adapter for the wiki content API. It
// exposes page-level operations over the retrying HTTP client and maps
// status codes onto typed errors.
package confluence

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/httpclient"
)

const maxResponseBodyBytes = 1 << 20

// API is the page surface the sync pipelines depend on.
type API interface {
	GetPage(ctx context.Context, pageID string) (Page, error)
	CreatePage(ctx context.Context, request CreatePageRequest) (Page, error)
	UpdatePage(ctx context.Context, request UpdatePageRequest) (Page, error)
}

type ClientOptions struct {
	BaseURL      string
	Email        string
	APIToken     string
	HTTPDoer     httpclient.Doer
	RetryOptions httpclient.Options
}

type Client struct {
	baseURL    string
	authHeader string
	client     *httpclient.RetryClient
	redactor   httpclient.Redactor
}

func NewClient(options ClientOptions) (*Client, error) {
	baseURL, err := normalizeBaseURL(options.BaseURL)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(options.Email)
	if email == "" {
		return nil, &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConfig,
			Message: "invalid confluence client options: email must be set",
		}
	}

	token := strings.TrimSpace(options.APIToken)
	if token == "" {
		return nil, &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConfig,
			Message: "invalid confluence client options: api token must be set",
		}
	}

	authSecret := email + ":" + token
	authHeader := "Basic " + base64.StdEncoding.EncodeToString([]byte(authSecret))
	redactor := httpclient.NewRedactor(token, authSecret, authHeader)

	return &Client{
		baseURL:    baseURL,
		authHeader: authHeader,
		client:     httpclient.NewRetryClient(options.HTTPDoer, options.RetryOptions),
		redactor:   redactor,
	}, nil
}

func (c *Client) GetPage(ctx context.Context, pageID string) (Page, error) {
	if c == nil {
		return Page{}, &Error{Code: ErrorCodeInvalidInput, Message: "confluence client is nil"}
	}

	canonicalID, err := validatePageID(pageID)
	if err != nil {
		return Page{}, err
	}

	query := url.Values{}
	query.Set("expand", "body.storage,version,space,ancestors,metadata.labels")

	resourcePath := "/rest/api/content/" + url.PathEscape(canonicalID)
	var response pageAPIResponse
	if err := c.doJSON(ctx, http.MethodGet, resourcePath, query, nil, []int{http.StatusOK}, &response); err != nil {
		return Page{}, err
	}
	return mapAPIPage(response), nil
}

func (c *Client) CreatePage(ctx context.Context, request CreatePageRequest) (Page, error) {
	if c == nil {
		return Page{}, &Error{Code: ErrorCodeInvalidInput, Message: "confluence client is nil"}
	}

	title := strings.TrimSpace(request.Title)
	if title == "" {
		return Page{}, &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConversion,
			Message: "invalid create page request: title must be set",
		}
	}
	spaceKey := strings.TrimSpace(request.SpaceKey)
	if spaceKey == "" {
		return Page{}, &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConfig,
			Message: "invalid create page request: space key must be set",
		}
	}

	payload := map[string]any{
		"type":  "page",
		"title": title,
		"space": map[string]string{"key": spaceKey},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          request.StorageBody,
				"representation": "storage",
			},
		},
	}
	if parent := strings.TrimSpace(request.ParentPageID); parent != "" {
		payload["ancestors"] = []map[string]string{{"id": parent}}
	}

	var response pageAPIResponse
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/content", nil, payload, []int{http.StatusOK, http.StatusCreated}, &response); err != nil {
		return Page{}, err
	}
	page := mapAPIPage(response)

	if labels := normalizeStringSlice(request.Labels); len(labels) > 0 {
		if err := c.addLabels(ctx, page.ID, labels); err != nil {
			return Page{}, err
		}
		page.Labels = labels
	}
	return page, nil
}

func (c *Client) UpdatePage(ctx context.Context, request UpdatePageRequest) (Page, error) {
	if c == nil {
		return Page{}, &Error{Code: ErrorCodeInvalidInput, Message: "confluence client is nil"}
	}

	canonicalID, err := validatePageID(request.PageID)
	if err != nil {
		return Page{}, err
	}
	title := strings.TrimSpace(request.Title)
	if title == "" {
		return Page{}, &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConversion,
			Message: "invalid update page request: title must be set",
		}
	}

	payload := map[string]any{
		"id":    canonicalID,
		"type":  "page",
		"title": title,
		"version": map[string]int{
			"number": request.BaseVersion + 1,
		},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          request.StorageBody,
				"representation": "storage",
			},
		},
	}
	if spaceKey := strings.TrimSpace(request.SpaceKey); spaceKey != "" {
		payload["space"] = map[string]string{"key": spaceKey}
	}

	resourcePath := "/rest/api/content/" + url.PathEscape(canonicalID)
	var response pageAPIResponse
	if err := c.doJSON(ctx, http.MethodPut, resourcePath, nil, payload, []int{http.StatusOK}, &response); err != nil {
		return Page{}, err
	}
	page := mapAPIPage(response)

	if labels := normalizeStringSlice(request.Labels); len(labels) > 0 {
		if err := c.addLabels(ctx, page.ID, labels); err != nil {
			return Page{}, err
		}
		page.Labels = labels
	}
	return page, nil
}

func (c *Client) addLabels(ctx context.Context, pageID string, labels []string) error {
	payload := make([]map[string]string, 0, len(labels))
	for _, label := range labels {
		payload = append(payload, map[string]string{"prefix": "global", "name": label})
	}

	resourcePath := "/rest/api/content/" + url.PathEscape(pageID) + "/label"
	return c.doJSON(ctx, http.MethodPost, resourcePath, nil, payload, []int{http.StatusOK}, nil)
}

func (c *Client) doJSON(ctx context.Context, method string, resourcePath string, query url.Values, payload any, expectedStatusCodes []int, out any) error {
	if len(expectedStatusCodes) == 0 {
		expectedStatusCodes = []int{http.StatusOK}
	}

	var requestBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return &Error{
				Code:     ErrorCodeRequestEncode,
				Kind:     contracts.FailureKindAPI,
				Message:  "failed to encode confluence request payload",
				Err:      err,
				redactor: c.redactor,
			}
		}
		requestBody = bytes.NewReader(encoded)
	}

	endpoint, err := c.endpointFor(resourcePath, query)
	if err != nil {
		return &Error{
			Code:     ErrorCodeRequestBuild,
			Kind:     contracts.FailureKindAPI,
			Message:  "failed to build confluence request URL",
			Err:      err,
			redactor: c.redactor,
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, requestBody)
	if err != nil {
		return &Error{
			Code:     ErrorCodeRequestBuild,
			Kind:     contracts.FailureKindAPI,
			Message:  "failed to build confluence request",
			Err:      err,
			redactor: c.redactor,
		}
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{
			Code:     ErrorCodeTransport,
			Kind:     contracts.FailureKindAPI,
			Message:  "failed to execute confluence request",
			Err:      err,
			redactor: c.redactor,
		}
	}
	defer resp.Body.Close()

	responseBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			Kind:       contracts.FailureKindAPI,
			StatusCode: resp.StatusCode,
			Message:    "failed to read confluence response body",
			Err:        readErr,
			redactor:   c.redactor,
		}
	}

	if !containsStatus(expectedStatusCodes, resp.StatusCode) {
		return c.statusError(resp.StatusCode, responseBody)
	}

	if out == nil || len(responseBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return &Error{
			Code:       ErrorCodeResponseDecode,
			Kind:       contracts.FailureKindAPI,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode confluence response body",
			Err:        err,
			redactor:   c.redactor,
		}
	}

	return nil
}

func (c *Client) statusError(statusCode int, body []byte) error {
	detail := extractAPIErrorMessage(body)
	if detail == "" {
		detail = strings.ToLower(http.StatusText(statusCode))
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &Error{
			Code:       ErrorCodeAuthFailed,
			Kind:       contracts.FailureKindAuthentication,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("confluence authentication failed with status %d: %s", statusCode, detail),
			redactor:   c.redactor,
		}
	case statusCode == http.StatusNotFound:
		return &Error{
			Code:       ErrorCodeNotFound,
			Kind:       contracts.FailureKindAPI,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("confluence page not found: %s", detail),
			redactor:   c.redactor,
		}
	case statusCode == http.StatusConflict:
		return &Error{
			Code:       ErrorCodeVersionConflict,
			Kind:       contracts.FailureKindConflict,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("confluence rejected the write with a version conflict: %s", detail),
			redactor:   c.redactor,
		}
	default:
		return &Error{
			Code:       ErrorCodeUnexpectedStatus,
			Kind:       contracts.FailureKindAPI,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("confluence request failed with status %d: %s", statusCode, detail),
			redactor:   c.redactor,
		}
	}
}

func (c *Client) endpointFor(resourcePath string, query url.Values) (string, error) {
	trimmedPath := "/" + strings.TrimLeft(strings.TrimSpace(resourcePath), "/")
	parsedBase, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	parsedBase.Path = strings.TrimRight(parsedBase.Path, "/") + trimmedPath
	if len(query) > 0 {
		parsedBase.RawQuery = query.Encode()
	}
	return parsedBase.String(), nil
}

func normalizeBaseURL(baseURL string) (string, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return "", &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConfig,
			Message: "invalid confluence client options: base URL must be set",
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConfig,
			Message: "invalid confluence client options: base URL is malformed",
			Err:     err,
		}
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindConfig,
			Message: "invalid confluence client options: base URL must include scheme and host",
		}
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

func validatePageID(pageID string) (string, error) {
	canonicalID := strings.TrimSpace(pageID)
	if canonicalID == "" {
		return "", &Error{
			Code:    ErrorCodeInvalidInput,
			Kind:    contracts.FailureKindAPI,
			Message: "invalid page id: must not be empty",
		}
	}
	for _, r := range canonicalID {
		if r < '0' || r > '9' {
			return "", &Error{
				Code:    ErrorCodeInvalidInput,
				Kind:    contracts.FailureKindAPI,
				Message: fmt.Sprintf("invalid page id %q: must be numeric", canonicalID),
			}
		}
	}
	return canonicalID, nil
}

func containsStatus(statuses []int, candidate int) bool {
	for _, status := range statuses {
		if status == candidate {
			return true
		}
	}
	return false
}

func normalizeStringSlice(values []string) []string {
	if values == nil {
		return nil
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func extractAPIErrorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Data    struct {
			Errors []struct {
				Message struct {
					Translation string `json:"translation"`
				} `json:"message"`
			} `json:"errors"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return trimmed
	}

	parts := make([]string, 0, len(payload.Data.Errors)+1)
	if message := strings.TrimSpace(payload.Message); message != "" {
		parts = append(parts, message)
	}
	for _, item := range payload.Data.Errors {
		if message := strings.TrimSpace(item.Message.Translation); message != "" {
			parts = append(parts, message)
		}
	}

	if len(parts) == 0 {
		return trimmed
	}
	return strings.Join(parts, "; ")
}

type pageAPIResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Ancestors []struct {
		ID string `json:"id"`
	} `json:"ancestors"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Metadata struct {
		Labels struct {
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata"`
}

func mapAPIPage(raw pageAPIResponse) Page {
	page := Page{
		ID:          strings.TrimSpace(raw.ID),
		Title:       strings.TrimSpace(raw.Title),
		SpaceKey:    strings.TrimSpace(raw.Space.Key),
		Version:     raw.Version.Number,
		StorageBody: raw.Body.Storage.Value,
	}
	if len(raw.Ancestors) > 0 {
		page.ParentPageID = strings.TrimSpace(raw.Ancestors[len(raw.Ancestors)-1].ID)
	}
	for _, label := range raw.Metadata.Labels.Results {
		if name := strings.TrimSpace(label.Name); name != "" {
			page.Labels = append(page.Labels, name)
		}
	}
	return page
}
