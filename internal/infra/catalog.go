package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// CatalogItem is the catalog's view of a product or one of its variants.
type CatalogItem struct {
	ProductRef int64  `json:"product_id"`
	VariantRef int64  `json:"variant_id,omitempty"`
	ParentRef  int64  `json:"parent_id,omitempty"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
}

// ErrCatalogNotFound is returned when the catalog has no such product or variant.
var ErrCatalogNotFound = errors.New("catalog: item not found")

// CatalogClient reads labels from the storefront catalog API. Lookups go
// through a circuit breaker and are cached in Redis; both the cache and the
// catalog itself are optional, so every caller must tolerate an error.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
	rdb        *redis.Client
	ttl        time.Duration
}

// NewCatalogClient returns nil when baseURL is empty. rdb may be nil.
func NewCatalogClient(baseURL string, rdb *redis.Client, ttl time.Duration, cb *CircuitBreaker) *CatalogClient {
	if baseURL == "" {
		return nil
	}
	if cb == nil {
		cb = NewCircuitBreaker(DefaultCBConfig("catalog"))
	}
	return &CatalogClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cb:         cb,
		rdb:        rdb,
		ttl:        ttl,
	}
}

// Breaker exposes the breaker for the health endpoint.
func (c *CatalogClient) Breaker() *CircuitBreaker { return c.cb }

// Lookup returns the variant when variantRef is non-zero, else the product.
func (c *CatalogClient) Lookup(ctx context.Context, productRef, variantRef int64) (*CatalogItem, error) {
	path := fmt.Sprintf("/products/%d", productRef)
	key := fmt.Sprintf("catalog:p:%d", productRef)
	if variantRef != 0 {
		path = fmt.Sprintf("/products/%d/variants/%d", productRef, variantRef)
		key = fmt.Sprintf("catalog:v:%d", variantRef)
	}

	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			var item CatalogItem
			if json.Unmarshal(cached, &item) == nil {
				return &item, nil
			}
		}
	}

	var item CatalogItem
	found := false
	err := c.cb.Execute(func() error {
		var err error
		found, err = c.get(ctx, path, &item)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if !found {
		return nil, ErrCatalogNotFound
	}

	if c.rdb != nil {
		if b, err := json.Marshal(item); err == nil {
			_ = c.rdb.Set(context.WithoutCancel(ctx), key, b, c.ttl).Err()
		}
	}
	return &item, nil
}

// get reports found=false with a nil error on 404: a missing item says
// nothing about catalog health and must not trip the breaker.
func (c *CatalogClient) get(ctx context.Context, path string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
