package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"poolpay/contracts/registry"
	"poolpay/internal/platform/tracer"
	"poolpay/internal/pool/ports"
	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPQuerier resolves quotes from a foreign registry over its quote endpoint.
// Answers are never cached; every settlement re-queries.
type HTTPQuerier struct {
	ref     domain.RegistryRef
	baseURL string
	client  HTTPDoer
	tracer  tracer.Tracer
}

// HTTPQuerierConfig configures an HTTP registry querier.
type HTTPQuerierConfig struct {
	Ref        domain.RegistryRef
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Tracer     tracer.Tracer
}

// NewHTTPQuerier creates a querier for one foreign registry.
func NewHTTPQuerier(cfg HTTPQuerierConfig) *HTTPQuerier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	tr := cfg.Tracer
	if tr == nil {
		tr = tracer.NewNoop()
	}
	return &HTTPQuerier{
		ref:     cfg.Ref,
		baseURL: cfg.BaseURL,
		client:  client,
		tracer:  tr,
	}
}

func (q *HTTPQuerier) Query(ctx context.Context, id domain.ServiceID) (quote ports.Quote, err error) {
	ctx, span := q.tracer.Start(ctx, tracer.SpanRegistryQuote,
		tracer.String(tracer.AttrRegistry, q.ref.String()),
		tracer.Uint64(tracer.AttrServiceID, uint64(id)),
	)
	defer func() { span.End(err) }()
	return q.query(ctx, id)
}

func (q *HTTPQuerier) query(ctx context.Context, id domain.ServiceID) (ports.Quote, error) {
	url := fmt.Sprintf("%s/registry/services/%s", q.baseURL, id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.Quote{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return ports.Quote{}, dErrors.WrapWithParams(err, dErrors.CodeInternal, "registry unreachable",
			map[string]any{"registry": q.ref.String()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ports.Quote{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read registry response")
	}
	if resp.StatusCode != http.StatusOK {
		return ports.Quote{}, dErrors.NewWithParams(dErrors.CodeInternal, "registry answered with error status",
			map[string]any{"registry": q.ref.String(), "status": resp.StatusCode})
	}

	var quote registry.ServiceQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return ports.Quote{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed registry quote")
	}
	if !quote.Exists {
		return ports.Quote{}, nil
	}

	provider, err := domain.ParseAccount(quote.Provider)
	if err != nil {
		return ports.Quote{}, dErrors.Wrap(err, dErrors.CodeInternal, "registry quote carries invalid provider")
	}
	return ports.Quote{Price: quote.Price, Provider: provider, Exists: true}, nil
}
