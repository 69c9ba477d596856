package sparql

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "structuredness/internal/core/errors"
	"structuredness/internal/shared/observability"
	"structuredness/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	resultsMediaType = "application/sparql-results+json"
	maxErrorBody     = 512
)

// Executor runs a SELECT query and returns its bindings table.
type Executor interface {
	Select(ctx context.Context, q Query) (*Results, error)
}

type ClientOptions struct {
	Endpoint  string
	Timeout   time.Duration
	Method    string
	UserAgent string
	Headers   map[string]string
	Limiter   *util.Limiter
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client speaks the SPARQL 1.1 query protocol over HTTP.
type Client struct {
	endpoint  string
	method    string
	userAgent string
	headers   map[string]string
	limiter   *util.Limiter
	http      *http.Client
	logger    *slog.Logger
}

var _ Executor = (*Client)(nil)

func NewClient(opts ClientOptions) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domainerrors.AddContext(
			domainerrors.New(domainerrors.CodeValidationError, "endpoint must be an absolute http(s) URL"),
			domainerrors.CtxEndpoint, endpoint,
		)
	}

	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	switch method {
	case "":
		method = http.MethodPost
	case http.MethodGet, http.MethodPost:
	default:
		return nil, domainerrors.Newf(domainerrors.CodeValidationError, "unsupported request method %q", opts.Method)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:  endpoint,
		method:    method,
		userAgent: opts.UserAgent,
		headers:   opts.Headers,
		limiter:   opts.Limiter,
		http:      httpClient,
		logger:    logger,
	}, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Select sends q and decodes the JSON results. Transport failures and
// non-2xx statuses other than 400 map to CodeEndpointUnreachable; a 400 maps
// to CodeMalformedQuery; an undecodable body maps to CodeMalformedResult.
func (c *Client) Select(ctx context.Context, q Query) (*Results, error) {
	ctx, span := observability.Tracer.Start(ctx, "sparql.Select", trace.WithAttributes(
		attribute.String("sparql.statistic", string(q.Statistic)),
		attribute.String("sparql.type", q.Type),
		attribute.String("sparql.predicate", q.Predicate),
		attribute.String("sparql.graph", q.Graph),
	))
	defer span.End()

	if err := c.limiter.Wait(ctx, 1); err != nil {
		return nil, c.annotate(domainerrors.Wrap(err, domainerrors.CodeEndpointUnreachable, "waiting for rate limiter"), q)
	}

	start := time.Now()
	observability.QueriesInFlight.Inc()
	results, err := c.do(ctx, q)
	observability.QueriesInFlight.Dec()
	elapsed := time.Since(start)

	observability.QueryDuration.WithLabelValues(string(q.Statistic)).Observe(elapsed.Seconds())
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = string(domainerrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	observability.QueriesTotal.WithLabelValues(string(q.Statistic), outcome).Inc()

	c.logger.Debug("sparql query",
		"statistic", q.Statistic,
		"type", q.Type,
		"predicate", q.Predicate,
		"rows", len(results.Rows()),
		"duration", elapsed,
		"outcome", outcome,
	)
	if err != nil {
		return nil, c.annotate(err, q)
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, q Query) (*Results, error) {
	req, err := c.newRequest(ctx, q.Text)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeEndpointUnreachable, "send query")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := strings.TrimSpace(string(body))
		code := domainerrors.CodeEndpointUnreachable
		msg := "endpoint returned " + resp.Status
		if resp.StatusCode == http.StatusBadRequest {
			code = domainerrors.CodeMalformedQuery
			msg = "endpoint rejected query"
		}
		if detail != "" {
			msg += ": " + detail
		}
		return nil, domainerrors.AddContext(domainerrors.New(code, msg), domainerrors.CtxStatus, resp.StatusCode)
	}

	var results Results
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, domainerrors.Wrap(err, domainerrors.CodeEndpointUnreachable, "read response")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeMalformedResult, "decode "+resultsMediaType)
	}
	return &results, nil
}

func (c *Client) newRequest(ctx context.Context, text string) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if c.method == http.MethodGet {
		target, perr := url.Parse(c.endpoint)
		if perr != nil {
			return nil, perr
		}
		values := target.Query()
		values.Set("query", text)
		target.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	} else {
		encoded := url.Values{"query": {text}}.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", resultsMediaType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) annotate(err error, q Query) error {
	err = domainerrors.AddContext(err, domainerrors.CtxEndpoint, c.endpoint)
	err = domainerrors.AddContext(err, domainerrors.CtxStatistic, string(q.Statistic))
	if q.Graph != "" {
		err = domainerrors.AddContext(err, domainerrors.CtxGraph, q.Graph)
	}
	if q.Type != "" {
		err = domainerrors.AddContext(err, domainerrors.CtxType, q.Type)
	}
	if q.Predicate != "" {
		err = domainerrors.AddContext(err, domainerrors.CtxPredicate, q.Predicate)
	}
	return fmt.Errorf("%s query: %w", q.Statistic, err)
}
