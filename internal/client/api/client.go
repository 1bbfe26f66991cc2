/*
Package api is the client transport to the HotelChat service.

Every call is a JSON request decoded from the service envelope ({code, message, data, errors}).
Failures come back as *errs.CustomError carrying the same codes the service uses, so callers
switch on errs.Is / errs.KindOf regardless of which side raised the error.

Authenticated calls take their bearer token from a Credentials source. A 401 answer to an
authenticated call invalidates that credential once; a caller without a credential gets
ErrUnauthorized locally and nothing is sent.
*/
package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout bounds a single request when the caller's context has no deadline.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps a decoded response body.
const maxResponseBytes = 4 << 20

// Credentials supplies the bearer token of the active session.
type Credentials interface {
	// Credential returns the current token and the revision of the session it belongs to.
	// An empty token means there is no session.
	Credential() (token string, revision int64)

	// Invalidate drops the session of the given revision after the service rejected its token.
	Invalidate(revision int64, reason string)
}

// Client talks to the service.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the service at baseURL.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		creds:   creds,
		logger:  logx.Component("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope mirrors resp.JSONResponse.
type envelope struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data"`
	Errors  map[string]string   `json:"errors"`
}

// Do performs an authenticated call and decodes the response data into out (when non-nil).
// It returns the session revision the call was made under, so callers can discard answers that
// arrive after the session changed.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) (int64, error) {
	token, revision := c.creds.Credential()
	if token == "" {
		return revision, errs.NewError(errs.ErrUnauthorized)
	}

	status, err := c.send(ctx, token, method, path, in, out)
	if status == http.StatusUnauthorized {
		c.logger.Warn().Str("path", path).Int64("revision", revision).Msg("Service rejected the session token")
		c.creds.Invalidate(revision, "token rejected by service")
		return revision, errs.NewError(errs.ErrSessionExpired)
	}
	return revision, err
}

// DoAnonymous performs a call without a bearer token.
func (c *Client) DoAnonymous(ctx context.Context, method, path string, in, out any) error {
	_, err := c.send(ctx, "", method, path, in, out)
	return err
}

// DoWithToken performs a call with an explicit token that is not (yet) the session's.
// A rejected token is reported as ErrUnauthorized and invalidates nothing.
func (c *Client) DoWithToken(ctx context.Context, token, method, path string, in, out any) error {
	_, err := c.send(ctx, token, method, path, in, out)
	return err
}

func (c *Client) send(ctx context.Context, token, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, errs.NewError(errs.ErrUnknown, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, errs.NewError(errs.ErrUnknown, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return 0, errs.NewError(errs.ErrNetwork, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, errs.NewError(errs.ErrNetwork, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if res.StatusCode == http.StatusUnauthorized {
			return res.StatusCode, errs.NewError(errs.ErrUnauthorized)
		}
		c.logger.Warn().Int("status", res.StatusCode).Str("path", path).Msg("Unreadable response body")
		return res.StatusCode, errs.NewError(errs.ErrNetwork, err)
	}

	if res.StatusCode >= http.StatusBadRequest || env.Code != 0 {
		code := env.Code
		if code == 0 {
			code = codeForStatus(res.StatusCode)
		}
		return res.StatusCode, errs.Decode(code, env.Message, res.StatusCode, env.Errors)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return res.StatusCode, errs.NewError(errs.ErrNetwork, err)
		}
	}
	return res.StatusCode, nil
}

// codeForStatus picks an error code for failures that carry no business code.
func codeForStatus(status int) int {
	switch status {
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusForbidden:
		return errs.ErrForbidden
	case http.StatusTooManyRequests:
		return errs.ErrRateLimitExceeded
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return errs.ErrNetwork
	default:
		return errs.ErrUnknown
	}
}
