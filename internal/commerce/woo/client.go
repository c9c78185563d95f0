// Package woo implements the commerce ports over the WooCommerce REST API (wc/v3).
//
// Engine links are stored as product meta data: _asset_id on products,
// _license_tier_id on products and variations, _linked_asset_id on variations.
package woo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	apperrors "audiolicense/internal/errors"
)

const (
	apiPrefix = "/wp-json/wc/v3"
	pageSize  = 100
	userAgent = "audiolicense-engine/1.0"
)

// Options configures a Client
type Options struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
}

// Client talks to one WooCommerce store
type Client struct {
	baseURL string
	key     string
	secret  string
	http    *retryablehttp.Client
	logger  *slog.Logger
}

// New creates a client for the store at opts.BaseURL
func New(opts Options, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store URL %q", opts.BaseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "woo_client"))

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	rc.Logger = logger

	return &Client{
		baseURL: u.String() + apiPrefix,
		key:     opts.ConsumerKey,
		secret:  opts.ConsumerSecret,
		http:    rc,
		logger:  logger,
	}, nil
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends one API request. A 404 becomes a NotFoundError for resource/id.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, resource, id string) error {
	op := "woo." + strings.ToLower(method) + " " + path

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		payload = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Upstream(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Upstream(op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode == http.StatusNotFound && resource != "" {
		return apperrors.NotFound(op, resource, id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		_ = json.Unmarshal(data, &ae)
		msg := ae.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusBadRequest {
			return apperrors.Validation(op, "store rejected request: %s", msg).With("code", ae.Code)
		}
		return apperrors.Upstream(op, fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Upstream(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperrors.Validation("woo.parseID", "%s id %q is not a store id", kind, id)
	}
	return n, nil
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
