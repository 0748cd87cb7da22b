package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/retry"
)

// Client talks to Instagram's public, unauthenticated endpoints
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	oembedURL  string
	limiter    ratelimit.Limiter
	retrier    *retry.Retrier
	logger     logger.Logger
}

// NewClient creates a new Instagram client
func NewClient(timeout time.Duration, userAgent string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         BaseURL + "/",
			"Origin":          BaseURL,
		},
		baseURL:   BaseURL,
		oembedURL: OEmbedURL,
		retrier:   retry.NewHTTPRetrier(3, log),
		logger:    log,
	}
}

// SetBaseURL points post, embed and JSON lookups at another host
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// SetOEmbedURL overrides the oEmbed endpoint
func (c *Client) SetOEmbedURL(endpoint string) {
	c.oembedURL = endpoint
}

// SetLimiter paces every outgoing request through l
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetRetrier replaces the retry policy
func (c *Client) SetRetrier(r *retry.Retrier) {
	c.retrier = r
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "request cancelled", err)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "request cancelled", ctxErr)
		}
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "network error", err).
			WithDetail("status_code", 0)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get performs a GET request, retrying transient failures. A non-2xx
// status is returned as an error and the body is closed.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to create request", err)
		}

		r, err := c.doRequest(req)
		if err != nil {
			return err
		}
		if err := c.checkResponseStatus(r); err != nil {
			r.Body.Close()
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to read response body", err)
	}

	return c.decodeJSON(url, resp.StatusCode, body, target)
}

func (c *Client) decodeJSON(url string, status int, body []byte, target interface{}) error {
	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.WarnWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       status,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.Wrap(errs.ErrorTypeInstagramAPIChanged, "failed to parse JSON", err)
	}
	return nil
}

// checkResponseStatus maps the HTTP status onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	status := resp.StatusCode
	url := resp.Request.URL.String()

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": status,
			"url":    url,
		})
		return errs.ContentNotFound("Post not found").WithDetail("status_code", status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": status,
			"url":    url,
		})
		return errs.AuthenticationFailed("Instagram requires authentication").
			WithDetail("status_code", status)
	case status == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": status,
			"url":    url,
		})
		return errs.RateLimited("Instagram rate limit exceeded").WithDetail("status_code", status)
	case status >= 500:
		c.logger.WarnWithFields("server error", map[string]interface{}{
			"status": status,
			"url":    url,
		})
		return errs.DownloadFailed(fmt.Sprintf("server error: %d", status)).
			WithDetail("status_code", status)
	default:
		c.logger.WarnWithFields("unexpected API response", map[string]interface{}{
			"status": status,
			"url":    url,
		})
		return errs.APIChanged(fmt.Sprintf("unexpected status code: %d", status)).
			WithDetail("status_code", status)
	}
}

// OEmbed fetches the public oEmbed record of a post
func (c *Client) OEmbed(ctx context.Context, shortcode string) (*OEmbedResponse, error) {
	var resp OEmbedResponse
	if err := c.GetJSON(ctx, GetOEmbedURL(c.oembedURL, shortcode), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EmbedMediaURLs scrapes the embed page of a post for media URLs
func (c *Client) EmbedMediaURLs(ctx context.Context, shortcode string) ([]string, error) {
	resp, err := c.Get(ctx, GetEmbedURL(c.baseURL, shortcode))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to read embed page", err)
	}

	urls := ExtractMediaURLs(string(body))
	c.logger.DebugWithFields("parsed embed page", map[string]interface{}{
		"shortcode": shortcode,
		"urls":      len(urls),
	})
	return urls, nil
}

// PostJSON reads the JSON view of a post. It returns nil without an error
// when Instagram answers with its login page instead.
func (c *Client) PostJSON(ctx context.Context, shortcode string) (*PostMedia, error) {
	resp, err := c.Get(ctx, GetPostJSONURL(c.baseURL, shortcode))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if strings.Contains(strings.ToLower(resp.Request.URL.String()), "login") {
		c.logger.WarnWithFields("redirected to login page", map[string]interface{}{
			"shortcode": shortcode,
		})
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to read post JSON", err)
	}

	var payload postJSONResponse
	if err := c.decodeJSON(resp.Request.URL.String(), resp.StatusCode, body, &payload); err != nil {
		return nil, err
	}
	return payload.media(), nil
}

// DownloadFile streams url into dest. When maxBytes is positive a larger
// body is discarded and a size_exceeded error returned.
func (c *Client) DownloadFile(ctx context.Context, url, dest string, maxBytes int64) (int64, error) {
	c.logger.DebugWithFields("downloading file", map[string]interface{}{
		"url":  url,
		"dest": dest,
	})

	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return 0, sizeExceeded(resp.ContentLength, maxBytes)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to create file", err)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}

	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		os.Remove(tmp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, errs.Wrap(errs.ErrorTypeDownloadFailed, "download cancelled", ctxErr)
		}
		return 0, errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to download file", copyErr)
	case closeErr != nil:
		os.Remove(tmp)
		return 0, errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to write file", closeErr)
	case maxBytes > 0 && n > maxBytes:
		os.Remove(tmp)
		return 0, sizeExceeded(n, maxBytes)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, errs.Wrap(errs.ErrorTypeDownloadFailed, "failed to move file into place", err)
	}

	c.logger.DebugWithFields("downloaded file", map[string]interface{}{
		"url":  url,
		"dest": dest,
		"size": humanize.Bytes(uint64(n)),
	})
	return n, nil
}

func sizeExceeded(size, limit int64) *errs.Error {
	return errs.DownloadFailed(fmt.Sprintf("File exceeds the maximum size of %s",
		humanize.Bytes(uint64(limit)))).
		WithDetail("reason", "size_exceeded").
		WithDetail("size_bytes", size).
		WithDetail("max_bytes", limit)
}
