// Package datagov fetches resale transactions from the public datastore API.
// It pages through the dataset for a month window, paces requests with a
// rate limiter, and retries transient failures.
package datagov

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/flatvalue/internal/logger"
	"github.com/rewired-gh/flatvalue/internal/models"
)

const searchPath = "/api/action/datastore_search"

// Client provides access to the datastore search API
type Client struct {
	baseURL        string
	resourceID     string
	httpClient     *http.Client
	limiter        *rate.Limiter
	pageSize       int
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds tuning for the client. Zero values take defaults.
type ClientConfig struct {
	PageSize        int
	MaxRetries      int
	RetryDelayBase  time.Duration
	RequestInterval time.Duration // minimum gap between requests; 0 disables pacing
}

// NewClient creates a new datastore client
func NewClient(baseURL, resourceID string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	return &Client{
		baseURL:        baseURL,
		resourceID:     resourceID,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(limit, 1),
		pageSize:       cfg.PageSize,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// MonthWindow returns the inclusive "YYYY-MM" bounds covering monthsBack
// months before asOf up to asOf's month.
func MonthWindow(asOf time.Time, monthsBack int) (from, to string) {
	first := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	return first.AddDate(0, -monthsBack, 0).Format("2006-01"), first.Format("2006-01")
}

// searchResponse is the datastore_search envelope.
type searchResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []record `json:"records"`
		Total   int      `json:"total"`
	} `json:"result"`
	Error json.RawMessage `json:"error,omitempty"`
}

// flexString accepts either a JSON string or a JSON number. The API returns
// most columns as strings but some mirrors emit numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

type record struct {
	ID                int        `json:"_id"`
	Month             flexString `json:"month"`
	Town              flexString `json:"town"`
	FlatType          flexString `json:"flat_type"`
	Block             flexString `json:"block"`
	StreetName        flexString `json:"street_name"`
	StoreyRange       flexString `json:"storey_range"`
	FloorAreaSqm      flexString `json:"floor_area_sqm"`
	FlatModel         flexString `json:"flat_model"`
	LeaseCommenceDate flexString `json:"lease_commence_date"`
	ResalePrice       flexString `json:"resale_price"`
}

func (r record) toTransaction() models.Transaction {
	return models.Transaction{
		ID:                r.ID,
		Month:             string(r.Month),
		Town:              string(r.Town),
		FlatType:          string(r.FlatType),
		Block:             string(r.Block),
		StreetName:        string(r.StreetName),
		StoreyRange:       string(r.StoreyRange),
		FloorAreaSqm:      string(r.FloorAreaSqm),
		FlatModel:         string(r.FlatModel),
		LeaseCommenceDate: string(r.LeaseCommenceDate),
		ResalePrice:       string(r.ResalePrice),
	}
}

// FetchTransactions retrieves every transaction whose month lies in
// [fromMonth, toMonth], paging until an empty or short page.
func (c *Client) FetchTransactions(ctx context.Context, fromMonth, toMonth string) ([]models.Transaction, error) {
	filters, err := json.Marshal(map[string]map[string]string{
		"month": {"$gte": fromMonth, "$lte": toMonth},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}

	var all []models.Transaction
	offset := 0
	for {
		logger.Debug("Fetching records with offset %d", offset)

		page, total, err := c.fetchPage(ctx, string(filters), offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		if len(page) < c.pageSize || (total > 0 && len(all) >= total) {
			break
		}
		offset += c.pageSize
	}

	logger.Info("Fetched %d transactions for %s to %s", len(all), fromMonth, toMonth)
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, filters string, offset int) ([]models.Transaction, int, error) {
	q := url.Values{}
	q.Set("resource_id", c.resourceID)
	q.Set("filters", filters)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(c.pageSize))
	endpoint := c.baseURL + searchPath + "?" + q.Encode()

	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if !body.Success {
		return nil, 0, fmt.Errorf("api reported failure: %s", string(body.Error))
	}

	txns := make([]models.Transaction, len(body.Result.Records))
	for i, r := range body.Result.Records {
		txns[i] = r.toTransaction()
	}
	return txns, body.Result.Total, nil
}

// doRequest performs HTTP request with retry logic. Transport errors and 5xx
// responses are retried with linear backoff; other non-2xx statuses fail at once.
func (c *Client) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Warn("Request attempt %d/%d failed: %v", i+1, c.maxRetries, err)
			continue
		}

		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Warn("Request attempt %d/%d failed: %v", i+1, c.maxRetries, lastErr)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
