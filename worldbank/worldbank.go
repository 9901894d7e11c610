// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

// Package worldbank imports indicator data from the World Bank API. It is a
// thin request/parse/reshape adapter: one paged JSON endpoint, tidy records
// out, a per-request in-memory cache, and no retry logic.
package worldbank

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/importers"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/config"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/logging"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/metrics"
)

const perPage = 1000

// Observation is one tidy indicator data point. Value is nil where the API
// reports no data for the country/year pair.
type Observation struct {
	IndicatorCode string
	IndicatorName string
	CountryID     string
	CountryName   string
	ISO3          string
	Year          int
	Value         *float64
}

// DataRequest selects what GetData returns. Indicator is required. An empty
// Countries slice means every reporting economy; years are an inclusive
// range, zero meaning unbounded on that side.
type DataRequest struct {
	Indicator string
	Countries []string
	StartYear int
	EndYear   int
}

// Importer fetches World Bank indicator data. Responses are cached in memory
// per request shape for the Importer's lifetime.
//
// Like the other importers in this module it is not safe for concurrent use.
type Importer struct {
	client  *http.Client
	baseURL string

	cache map[string][]Observation
}

// Option configures an Importer.
type Option func(*Importer)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Importer) { i.client = client }
}

// WithAPIBaseURL overrides the API base URL.
func WithAPIBaseURL(u string) Option {
	return func(i *Importer) { i.baseURL = u }
}

// New creates a World Bank importer. Settings come from the module
// configuration (defaults plus BBLOCKS_ environment overrides), then from
// options.
func New(opts ...Option) (*Importer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	imp := &Importer{
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL: cfg.WorldBank.APIBaseURL,
		cache:   make(map[string][]Observation),
	}

	for _, opt := range opts {
		opt(imp)
	}

	return imp, nil
}

// GetData returns the indicator observations matching the request, fetching
// every page of the API response. Identical requests on the same Importer
// are served from memory.
func (i *Importer) GetData(req DataRequest) ([]Observation, error) {
	if req.Indicator == "" {
		return nil, importers.NewInvalidRequestError("Indicator is required (e.g. \"SP.POP.TOTL\")")
	}
	if req.StartYear != 0 && req.EndYear != 0 && req.StartYear > req.EndYear {
		return nil, importers.NewInvalidRequestError("invalid year range: start %d is after end %d", req.StartYear, req.EndYear)
	}

	key := i.cacheKey(req)
	if cached, ok := i.cache[key]; ok {
		metrics.CacheHits.WithLabelValues("worldbank").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("worldbank").Inc()

	logging.Info().
		Str("indicator", req.Indicator).
		Msg("Fetching World Bank indicator data")

	var observations []Observation
	for page := 1; ; page++ {
		rows, pages, err := i.fetchPage(req, page)
		if err != nil {
			return nil, err
		}
		observations = append(observations, rows...)
		if page >= pages {
			break
		}
	}

	i.cache[key] = observations
	return observations, nil
}

func (i *Importer) cacheKey(req DataRequest) string {
	return fmt.Sprintf("%s|%s|%d-%d", req.Indicator, strings.Join(req.Countries, ";"), req.StartYear, req.EndYear)
}

// pageMeta is the first element of every API response page.
type pageMeta struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

// observationRow is the API's per-observation shape.
type observationRow struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	ISO3  string   `json:"countryiso3code"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// apiError is the single-element body the API returns for bad requests.
type apiError struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

func (i *Importer) fetchPage(req DataRequest, page int) ([]Observation, int, error) {
	endpoint := i.pageURL(req, page)

	resp, err := i.client.Get(endpoint)
	if err != nil {
		return nil, 0, &importers.ExtractionError{Source: "worldbank", Msg: "failed to query indicator API", Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Error closing API response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, &importers.ExtractionError{
			Source: "worldbank",
			Msg:    fmt.Sprintf("indicator API returned HTTP %d for %s", resp.StatusCode, endpoint),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &importers.ExtractionError{Source: "worldbank", Msg: "failed to read API response", Err: err}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, 0, &importers.ParseError{Source: "worldbank", Msg: fmt.Sprintf("response is not a JSON array: %v", err)}
	}

	// Bad requests come back as a one-element array carrying a message
	// block instead of data.
	if len(elements) < 2 {
		var apiErr apiError
		if len(elements) == 1 && json.Unmarshal(elements[0], &apiErr) == nil && len(apiErr.Message) > 0 {
			return nil, 0, importers.NewInvalidRequestError(
				"indicator API rejected the request: %s", apiErr.Message[0].Value)
		}
		return nil, 0, &importers.ParseError{Source: "worldbank", Msg: "response is missing the data element"}
	}

	var meta pageMeta
	if err := json.Unmarshal(elements[0], &meta); err != nil {
		return nil, 0, &importers.ParseError{Source: "worldbank", Msg: fmt.Sprintf("malformed page metadata: %v", err)}
	}

	var rows []observationRow
	if err := json.Unmarshal(elements[1], &rows); err != nil {
		return nil, 0, &importers.ParseError{Source: "worldbank", Msg: fmt.Sprintf("malformed observation list: %v", err)}
	}

	observations := make([]Observation, 0, len(rows))
	for _, row := range rows {
		// The annual endpoint dates observations by year; anything else
		// (quarterly or monthly series) is out of scope here.
		year, convErr := strconv.Atoi(row.Date)
		if convErr != nil {
			continue
		}
		observations = append(observations, Observation{
			IndicatorCode: row.Indicator.ID,
			IndicatorName: row.Indicator.Value,
			CountryID:     row.Country.ID,
			CountryName:   row.Country.Value,
			ISO3:          row.ISO3,
			Year:          year,
			Value:         row.Value,
		})
	}

	pages := meta.Pages
	if pages < 1 {
		pages = 1
	}
	return observations, pages, nil
}

// pageURL builds one page's endpoint:
// {base}/country/{countries}/indicator/{id}?format=json&per_page=1000&page=N
func (i *Importer) pageURL(req DataRequest, page int) string {
	countries := "all"
	if len(req.Countries) > 0 {
		countries = strings.Join(req.Countries, ";")
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))
	if req.StartYear != 0 || req.EndYear != 0 {
		start, end := req.StartYear, req.EndYear
		if start == 0 {
			start = end
		}
		if end == 0 {
			end = start
		}
		query.Set("date", fmt.Sprintf("%d:%d", start, end))
	}

	return fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		i.baseURL, url.PathEscape(countries), url.PathEscape(req.Indicator), query.Encode())
}

// ClearCache discards every cached response.
func (i *Importer) ClearCache() {
	i.cache = make(map[string][]Observation)
	logging.Info().Msg("Cache cleared")
}
