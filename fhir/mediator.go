// Package fhir mediates reads against the backend FHIR server. The mediator
// owns the deterministic resource URL construction and brackets every outbound
// call with pre-fetch and post-fetch audit events. It performs no caching and
// no retries; the backend's answer is returned to the caller as-is.
package fhir

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/internal/config"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Result carries the backend's response verbatim. The body is never written
// to any audit sink.
type Result struct {
	StatusCode int
	Body       []byte
}

type Mediator struct {
	cfg        config.FHIR
	httpClient *http.Client
	bus        *audit.Bus
	nowTime    func() time.Time
	newUUID    func() string
}

type MediatorOption func(*Mediator)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(httpClient *http.Client) MediatorOption {
	return func(m *Mediator) {
		m.httpClient = httpClient
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) MediatorOption {
	return func(m *Mediator) {
		m.nowTime = nowFunc
	}
}

func NewMediator(cfg config.FHIR, bus *audit.Bus, options ...MediatorOption) (*Mediator, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("[fhir.NewMediator] base url is required")
	}
	if bus == nil {
		return nil, errors.New("[fhir.NewMediator] bus is required")
	}

	httpClient, err := newBackendClient(cfg)
	if err != nil {
		return nil, err
	}
	mediator := &Mediator{
		cfg:        cfg,
		bus:        bus,
		httpClient: httpClient,
		nowTime:    time.Now,
		newUUID:    uuid.NewString,
	}
	for _, opt := range options {
		opt(mediator)
	}
	return mediator, nil
}

// newBackendClient builds the HTTP client for backend calls. The gateway
// authenticates with its own client certificate when one is configured.
func newBackendClient(cfg config.FHIR) (*http.Client, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.CertFile == "" && cfg.KeyFile == "" {
		return client, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "[fhir.newBackendClient] load client certificate")
	}
	client.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}
	return client, nil
}

// ResourceURL builds the canonical backend URL for one resource instance.
// Identical (base, type, id) inputs always yield an identical URL, so audited
// paths can be compared across requests.
func ResourceURL(baseURL, resourceType, resourceID string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + resourceType + "/" + resourceID + "/"
}

// Fetch retrieves one resource on behalf of an authorized application request.
// The pre-fetch event is published before the network call and the post-fetch
// event after it; both carry the same correlation uuid.
func (m *Mediator) Fetch(ctx context.Context, resourceType, resourceID, requestID string) (*Result, error) {
	return m.fetch(ctx, resourceType, resourceID, requestID, "", audit.SenderResourceMediator, flowtrace.Snapshot{})
}

// FetchForAuth retrieves a resource mid-authorization, on the identity
// client's behalf, authenticated by that flow's own identity-provider token.
// The header is sent upstream only and never appears in audit events. The
// audit events carry the flow trace so the fetch can be tied back to the
// consent journey it served.
func (m *Mediator) FetchForAuth(ctx context.Context, resourceType, resourceID, requestID, authHeader string, trace flowtrace.Snapshot) (*Result, error) {
	return m.fetch(ctx, resourceType, resourceID, requestID, authHeader, audit.SenderIdentityClient, trace)
}

func (m *Mediator) fetch(ctx context.Context, resourceType, resourceID, requestID, authHeader string, sender audit.Sender, trace flowtrace.Snapshot) (*Result, error) {
	if resourceType == "" || resourceID == "" {
		return nil, errors.New("[Mediator.fetch] resource type and id are required")
	}
	if requestID == "" {
		requestID = m.newUUID()
	}

	target := ResourceURL(m.cfg.BaseURL, resourceType, resourceID)
	query := url.Values{"_format": []string{"json"}}

	start := m.nowTime()
	m.bus.Publish(ctx, audit.ChannelPreFetch, sender, audit.FetchRequestEvent{
		UUID:    requestID,
		Path:    target,
		StartAt: start,
		Trace:   trace,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Mediator.fetch] build request")
	}
	req.Header.Set("X-Request-ID", requestID)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Mediator.fetch] backend call")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[Mediator.fetch] read response body")
	}

	m.bus.Publish(ctx, audit.ChannelPostFetch, sender, audit.FetchResponseEvent{
		UUID:       requestID,
		Path:       target,
		StatusCode: resp.StatusCode,
		Elapsed:    m.nowTime().Sub(start),
		Trace:      trace,
	})

	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}
