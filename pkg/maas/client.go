// Package maas implements the REST client for the MAAS API that resource
// handlers fetch through. Every failure is mapped into the typed taxonomy in
// pkg/apierror so handlers never see a raw transport error.
package maas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsforge/maas-mcp/pkg/apierror"
	"github.com/opsforge/maas-mcp/pkg/helpers"
)

// Backend is the narrow contract resource handlers consume. Implementations
// must honor ctx cancellation and return only typed errors.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	Put(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// Credentials are the three parts of a MAAS API key.
type Credentials struct {
	ConsumerKey string
	TokenKey    string
	TokenSecret string
}

// ParseAPIKey splits a MAAS API key of the form consumer:token:secret.
func ParseAPIKey(key string) (Credentials, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Credentials{}, errors.New("invalid MAAS API key: expected consumer:token:secret")
	}
	return Credentials{ConsumerKey: parts[0], TokenKey: parts[1], TokenSecret: parts[2]}, nil
}

// Client talks to the MAAS API using OAuth 1.0 PLAINTEXT signing, which is
// the scheme MAAS accepts for API keys.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	log     *slog.Logger
}

// NewClient creates a MAAS client for the given API root and key. The timeout
// is the deadline boundary for every backend call.
func NewClient(apiURL, apiKey string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	creds, err := ParseAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(apiURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// Get performs a GET against the MAAS API.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post performs a form-encoded POST against the MAAS API.
func (c *Client) Post(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, params)
}

// Put performs a form-encoded PUT against the MAAS API.
func (c *Client) Put(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, nil, params)
}

// Delete performs a DELETE against the MAAS API.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, form url.Values) (json.RawMessage, error) {
	// Honor a caller that has already given up before spending a connection.
	if err := ctx.Err(); err != nil {
		return nil, abortError(err)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, apierror.Newf(http.StatusInternalServerError, apierror.CodeUnknownError,
			"building MAAS request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authorizationHeader())
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapTransportError(ctx, err)
	}
	defer helpers.CloseResources(resp.Body, "MAAS response body")

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.mapTransportError(ctx, err)
	}

	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(string(payload))
		if message == "" {
			message = fmt.Sprintf("MAAS returned status %d", resp.StatusCode)
		}
		return nil, apierror.FromStatus(resp.StatusCode, message)
	}

	return payload, nil
}

// authorizationHeader builds the OAuth 1.0 PLAINTEXT header MAAS expects.
func (c *Client) authorizationHeader() string {
	return fmt.Sprintf(
		`OAuth oauth_version="1.0", oauth_signature_method="PLAINTEXT", `+
			`oauth_consumer_key=%q, oauth_token=%q, oauth_signature="&%s", `+
			`oauth_nonce=%q, oauth_timestamp="%d"`,
		c.creds.ConsumerKey, c.creds.TokenKey, c.creds.TokenSecret,
		helpers.GenerateID(), time.Now().Unix(),
	)
}

// mapTransportError classifies transport-level failures: caller cancellation
// wins, then deadline/timeout, then anything connection-shaped.
func (c *Client) mapTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return abortError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.New(http.StatusGatewayTimeout, apierror.CodeRequestTimeout,
			"MAAS request exceeded its deadline")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierror.New(http.StatusGatewayTimeout, apierror.CodeRequestTimeout,
			"MAAS request timed out")
	}
	c.log.Warn("MAAS connection failure", slog.Any("error", err))
	return apierror.Newf(http.StatusServiceUnavailable, apierror.CodeNetworkError,
		"MAAS unreachable: %v", err)
}

func abortError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.New(http.StatusGatewayTimeout, apierror.CodeRequestTimeout,
			"MAAS request exceeded its deadline")
	}
	return apierror.New(apierror.StatusClientClosedRequest, apierror.CodeRequestAborted,
		"request canceled by caller")
}
