// Package scraper fetches and parses the public garage status page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"parkwatch/internal/config"
	"parkwatch/internal/external"
	"parkwatch/internal/types"
)

// DefaultStatusURL is the plain-HTML status page.
const DefaultStatusURL = "https://sjsuparkingstatus.sjsu.edu/GarageStatusPlain"

// browserHeaders are sent with every fetch; the status page rejects requests
// that do not look like a browser.
var browserHeaders = http.Header{
	"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
	"Accept-Language": {"en-US,en;q=0.5"},
	"Connection":      {"keep-alive"},
}

// Client scrapes the status page through the resilient BaseClient.
type Client struct {
	base     *external.BaseClient
	url      string
	location *time.Location
	logger   *slog.Logger
}

// NewClient builds a scraper from config. loc is used to interpret the page's
// "Last updated" stamp.
func NewClient(cfg config.ScraperConfig, loc *time.Location, logger *slog.Logger, opts ...external.BaseClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	url := cfg.StatusURL
	if url == "" {
		url = DefaultStatusURL
	}
	opts = append([]external.BaseClientOption{external.WithDefaultHeaders(browserHeaders)}, opts...)
	return &Client{
		base: external.NewBaseClient(
			&http.Client{Timeout: cfg.Timeout},
			"status-page",
			external.DefaultRetryPolicy(),
			cfg.UserAgent,
			opts...,
		),
		url:      url,
		location: loc,
		logger:   logger,
	}
}

// Scrape fetches and parses the status page.
func (c *Client) Scrape(ctx context.Context) (Page, error) {
	c.logger.DebugContext(ctx, "fetching status page", "url", c.url)

	resp, err := c.base.Get(ctx, c.url)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("status page returned %d", resp.StatusCode),
			nil,
		)
	}

	page, err := Parse(resp.Body, c.location)
	if err != nil {
		return Page{}, err
	}
	if len(page.Garages) == 0 {
		c.logger.WarnContext(ctx, "no garages found on status page, markup may have changed", "url", c.url)
	}
	return page, nil
}

// GarageSummary is the per-garage line of a health check.
type GarageSummary struct {
	Name        string  `json:"name"`
	Utilization float64 `json:"utilization"`
}

// HealthReport is returned by HealthCheck.
type HealthReport struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	GarageCount int             `json:"garage_count,omitempty"`
	Garages     []GarageSummary `json:"garages,omitempty"`
}

// HealthCheck scrapes without storing anything and reports what it saw.
// Failures are reported in the result, never returned.
func (c *Client) HealthCheck(ctx context.Context) HealthReport {
	page, err := c.Scrape(ctx)
	if err != nil {
		return HealthReport{Success: false, Message: err.Error()}
	}
	if len(page.Garages) == 0 {
		return HealthReport{Success: false, Message: "No garage data found"}
	}

	summaries := make([]GarageSummary, len(page.Garages))
	for i, g := range page.Garages {
		summaries[i] = GarageSummary{Name: g.GarageName, Utilization: g.OccupiedPercentage}
	}
	return HealthReport{
		Success:     true,
		Message:     fmt.Sprintf("Successfully scraped %d garages", len(page.Garages)),
		GarageCount: len(page.Garages),
		Garages:     summaries,
	}
}
