// Package identity performs the OAuth2 authorization-code exchange with the
// upstream identity provider, attaching request correlation metadata and
// firing audit hooks around the network call.
package identity

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/internal/config"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// UpstreamAuthError is the hard failure for a non-success identity-provider
// response. There is no retry; the caller translates it into a user-facing
// authorization-failure page.
type UpstreamAuthError struct {
	StatusCode int
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("identity provider returned status %d", e.StatusCode)
}

// ExchangeResult holds the identity provider's token for the one
// authorization flow that produced it. It lives on that flow's call stack
// and is discarded when the flow ends; it is never persisted and never
// shared across flows.
type ExchangeResult struct {
	token oauth2.Token
}

func (r *ExchangeResult) AccessToken() string {
	return r.token.AccessToken
}

// AuthHeader produces the bearer authorization header for the flow's token.
// The returned value must never be written to any log sink.
func (r *ExchangeResult) AuthHeader() string {
	return "Bearer " + r.token.AccessToken
}

// Client exchanges authorization codes at the identity provider's token
// endpoint. The client itself holds only configuration and is safe for
// concurrent use; each exchange returns its own per-flow result.
type Client struct {
	cfg        config.Identity
	httpClient *http.Client
	bus        *audit.Bus
	nowTime    func() time.Time
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

func New(cfg config.Identity, bus *audit.Bus, options ...ClientOption) (*Client, error) {
	if cfg.TokenEndpoint == "" {
		return nil, errors.New("[identity.New] token endpoint is required")
	}
	if bus == nil {
		return nil, errors.New("[identity.New] bus is required")
	}

	client := &Client{
		cfg: cfg,
		bus: bus,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				// VerifySSL defaults to on; disabling it is an explicit
				// configuration choice for sandbox environments.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifySSL},
			},
		},
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// Exchange swaps an authorization code for an identity-provider access token.
// The identity-provider-response audit event fires before the status code is
// evaluated, so failed exchanges are still audited with the same correlation
// context as the surrounding request.
func (c *Client) Exchange(ctx context.Context, code, requestID string, trace flowtrace.Snapshot) (*ExchangeResult, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": c.cfg.RedirectURI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] marshal token request")
	}

	start := c.nowTime()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] build token request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("X-SLS-starttime", start.UTC().Format(time.RFC3339Nano))
	if c.cfg.ClientID != "" && c.cfg.ClientSecret != "" {
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] token endpoint call")
	}
	defer func() { _ = resp.Body.Close() }()

	c.bus.Publish(ctx, audit.ChannelIdentityProviderResponse, audit.SenderIdentityClient,
		audit.IdentityProviderResponseEvent{
			UUID:       requestID,
			Path:       c.cfg.TokenEndpoint,
			StatusCode: resp.StatusCode,
			Elapsed:    c.nowTime().Sub(start),
			Trace:      trace,
		})

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpstreamAuthError{StatusCode: resp.StatusCode}
	}

	result := &ExchangeResult{}
	if err := json.NewDecoder(resp.Body).Decode(&result.token); err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] decode token response")
	}
	if result.token.AccessToken == "" {
		return nil, errors.New("[Client.Exchange] token response missing access_token")
	}
	return result, nil
}
