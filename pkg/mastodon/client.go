package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"baraagdl/pkg/errors"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/ratelimit"
	"baraagdl/pkg/retry"
)

// Client is a Mastodon API client. All operations take an explicit context;
// there is no ambient default session.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	retrier    *retry.HTTPRetrier
	logger     logger.Logger
}

// NewClient creates a new Mastodon API client
func NewClient(baseURL string, timeout time.Duration, limiter ratelimit.Limiter, maxRetries int, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(60, time.Minute)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Accept": "application/json",
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limiter: limiter,
		retrier: retry.NewHTTPRetrier(maxRetries, log),
		logger:  log,
	}
}

// BaseURL returns the instance base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetAccessToken installs a bearer token for authenticated requests
func (c *Client) SetAccessToken(token string) {
	c.headers["Authorization"] = "Bearer " + token
}

// doRequest performs an HTTP request with the configured headers, pacing
// it through the rate limiter
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	c.limiter.Wait()

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
			Wrapped: err,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get performs a GET request to the specified URL
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}

	return c.doRequest(req)
}

// GetJSON performs a GET request and decodes the JSON response, retrying
// retryable failures with error-type aware backoff
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	return c.retrier.Do(ctx, func() error {
		resp, err := c.Get(ctx, rawURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		return c.decodeJSON(resp, rawURL, target)
	})
}

// PostForm performs a form-encoded POST request and decodes the JSON response
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, target interface{}) error {
	return c.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
				Code:    0,
			}
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.doRequest(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		return c.decodeJSON(resp, rawURL, target)
	})
}

// decodeJSON reads and unmarshals a response body
func (c *Client) decodeJSON(resp *http.Response, rawURL string, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
				"status": resp.StatusCode,
				"url":    resp.Request.URL.String(),
			})
			return &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// VerifyCredentials fetches the logged-in account ("who am I")
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.GetJSON(ctx, VerifyCredentialsURL(c.baseURL), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// AccountStatuses fetches one page of an account's media-bearing, non-reply
// statuses, newest first, bounded by maxID when non-empty
func (c *Client) AccountStatuses(ctx context.Context, accountID, maxID string) (Page, error) {
	c.logger.DebugWithFields("fetching status page", map[string]interface{}{
		"account_id": accountID,
		"max_id":     maxID,
	})

	var page Page
	if err := c.GetJSON(ctx, StatusesURL(c.baseURL, accountID, maxID), &page); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("status page fetched", map[string]interface{}{
		"account_id": accountID,
		"count":      len(page),
	})

	return page, nil
}

// SearchAccounts searches accounts by name
func (c *Client) SearchAccounts(ctx context.Context, query string) ([]Account, error) {
	var accounts []Account
	if err := c.GetJSON(ctx, SearchAccountsURL(c.baseURL, query), &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// RegisterApp registers this tool with the instance and returns client
// credentials
func (c *Client) RegisterApp(ctx context.Context, clientName string) (*Application, error) {
	form := url.Values{}
	form.Set("client_name", clientName)
	form.Set("redirect_uris", RedirectURI)
	form.Set("scopes", OAuthScopes)

	var app Application
	if err := c.PostForm(ctx, AppsURL(c.baseURL), form, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ObtainToken logs in a user with the password grant and returns an OAuth
// token for the registered app
func (c *Client) ObtainToken(ctx context.Context, app *Application, username, password string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", app.ClientID)
	form.Set("client_secret", app.ClientSecret)
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", OAuthScopes)

	var token Token
	if err := c.PostForm(ctx, TokenURL(c.baseURL), form, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Download opens a streaming GET against a media URL. The caller owns the
// returned body and must close it.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp.Body, nil
}

// ProbeHeaders issues a GET against a URL and returns only the response
// headers, discarding the body. Used to disambiguate redirect-style media
// URLs via Content-Disposition/Content-Type.
func (c *Client) ProbeHeaders(ctx context.Context, rawURL string) (http.Header, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	return resp.Header, nil
}
