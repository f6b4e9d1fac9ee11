package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/company-portal/internal/circuitbreaker"
	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/observability"
)

// UpstreamCatalog labels product catalog calls in metrics and errors.
const UpstreamCatalog = "catalog"

type CatalogClient interface {
	FetchTopProducts(ctx context.Context) ([]models.Product, error)
}

// ProductCatalogClient pages through a rating-sorted product listing
// (limit/skip/sortBy/order query parameters, {"products":[...]} body).
type ProductCatalogClient struct {
	apiURL   *url.URL
	pages    int
	pageSize int
	timeout  time.Duration
	client   *http.Client
	breaker  *circuitbreaker.Breaker
}

// NewProductCatalogClient returns a client that fetches pages*pageSize items per call.
func NewProductCatalogClient(apiURL string, timeout time.Duration, pages, pageSize int) (*ProductCatalogClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid catalog API URL %q", apiURL)
	}
	if pages <= 0 || pageSize <= 0 {
		return nil, fmt.Errorf("catalog pages and page size must be positive, got %d x %d", pages, pageSize)
	}
	return &ProductCatalogClient{
		apiURL:   u,
		pages:    pages,
		pageSize: pageSize,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// SetCircuitBreaker guards each fan-out with b. Pass nil to disable.
func (c *ProductCatalogClient) SetCircuitBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

type catalogPage struct {
	Products []models.Product `json:"products"`
}

// FetchTopProducts requests every page concurrently and concatenates them in
// offset order. The first failing page cancels the others and fails the call;
// no partial list is returned.
func (c *ProductCatalogClient) FetchTopProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := observability.Tracer("client").Start(ctx, "catalog.top_products")
	defer span.End()
	span.SetAttributes(attribute.Int("catalog.pages", c.pages), attribute.Int("catalog.page_size", c.pageSize))

	var products []models.Product
	err := c.breaker.Call(func() error {
		var fanErr error
		products, fanErr = c.fanOut(ctx)
		return fanErr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			err = &UpstreamError{Upstream: UpstreamCatalog, Err: err}
		}
		observability.UpstreamErrorsTotal.WithLabelValues(UpstreamCatalog, string(CategorizeError(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog fan-out failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.items", len(products)))
	return products, nil
}

func (c *ProductCatalogClient) fanOut(ctx context.Context) ([]models.Product, error) {
	pages := make([][]models.Product, c.pages)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.pages; i++ {
		g.Go(func() error {
			items, err := c.fetchPage(gctx, i*c.pageSize)
			if err != nil {
				return err
			}
			pages[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Product, 0, c.pages*c.pageSize)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out, nil
}

func (c *ProductCatalogClient) fetchPage(ctx context.Context, skip int) ([]models.Product, error) {
	ctx, span := observability.Tracer("client").Start(ctx, "catalog.page")
	defer span.End()
	span.SetAttributes(attribute.Int("catalog.skip", skip))

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var page catalogPage
	if err := getJSON(reqCtx, c.client, UpstreamCatalog, c.pageURL(skip), &page); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return page.Products, nil
}

func (c *ProductCatalogClient) pageURL(skip int) string {
	u := *c.apiURL
	params := u.Query()
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("skip", strconv.Itoa(skip))
	params.Set("sortBy", "rating")
	params.Set("order", "desc")
	u.RawQuery = params.Encode()
	return u.String()
}
