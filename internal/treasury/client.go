// Package treasury fetches the auctioned Treasury universe from
// TreasuryDirect and narrows it down to the tradeable on-the-run issues.
package treasury

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	auctionedPath = "/TA_WS/securities/auctioned"
	dateLayout    = "2006-01-02T15:04:05"
	lookbackDays  = 365
	universeKey   = "universe"
)

// Client is a thin wrapper around the TreasuryDirect securities API
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.Cache
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a new TreasuryDirect client. Responses are cached for ttl.
func NewClient(baseURL string, timeout, ttl time.Duration, logger *zap.Logger) *Client {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		cache:      cache.New(ttl, 2*ttl),
		logger:     logger.With(zap.String("component", "treasury")),
		now:        time.Now,
	}
}

// auctionRecord is the subset of an auction result the strategy uses
type auctionRecord struct {
	CUSIP        string `json:"cusip"`
	IssueDate    string `json:"issueDate"`
	SecurityType string `json:"securityType"`
	SecurityTerm string `json:"securityTerm"`
	MaturityDate string `json:"maturityDate"`
	InterestRate string `json:"interestRate"`
	Type         string `json:"type"`
}

func (r auctionRecord) security() (models.Security, error) {
	issue, err := time.Parse(dateLayout, r.IssueDate)
	if err != nil {
		return models.Security{}, fmt.Errorf("cusip %s issue date: %w", r.CUSIP, err)
	}
	maturity, err := time.Parse(dateLayout, r.MaturityDate)
	if err != nil {
		return models.Security{}, fmt.Errorf("cusip %s maturity date: %w", r.CUSIP, err)
	}
	return models.Security{
		CUSIP:        r.CUSIP,
		Term:         r.SecurityTerm,
		Type:         r.Type,
		IssueDate:    issue,
		MaturityDate: maturity,
		InterestRate: r.InterestRate,
	}, nil
}

// doRequest performs a GET against the API
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// parseResponse reads and unmarshals the response
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// Auctioned returns every security auctioned over the last year. Records
// with unparseable dates are skipped.
func (c *Client) Auctioned(ctx context.Context) ([]models.Security, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("days", fmt.Sprint(lookbackDays))

	resp, err := c.doRequest(ctx, auctionedPath, params)
	if err != nil {
		return nil, err
	}
	var records []auctionRecord
	if err := parseResponse(resp, &records); err != nil {
		return nil, err
	}

	out := make([]models.Security, 0, len(records))
	for _, r := range records {
		s, err := r.security()
		if err != nil {
			c.logger.Debug("skipping auction record", zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Universe returns the filtered tradeable universe, served from cache when fresh
func (c *Client) Universe(ctx context.Context) (Universe, error) {
	if cached, found := c.cache.Get(universeKey); found {
		return cached.(Universe), nil
	}
	all, err := c.Auctioned(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch treasury auctions: %w", err)
	}
	u := FilterUniverse(all, c.now())
	if len(u) == 0 {
		return nil, fmt.Errorf("no tradeable treasuries among %d auctioned securities", len(all))
	}
	c.cache.Set(universeKey, u, cache.DefaultExpiration)
	c.logger.Info("treasury universe loaded",
		zap.Int("auctioned", len(all)),
		zap.Int("tradeable", len(u)))
	return u, nil
}
