// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/importers"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/config"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/logging"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/metrics"
)

// VersionLatest selects the release marked current on the CEPII page. It is
// the default when DataRequest.BACIVersion is empty.
const VersionLatest = "latest"

// DataRequest selects what GetData returns. HSVersion is required; an empty
// BACIVersion means the latest release. Nil filters impose no restriction.
type DataRequest struct {
	HSVersion   string
	BACIVersion string

	Years    *YearFilter
	Products *ProductFilter

	// InclCountryLabels adds exporter/importer names and ISO3 codes.
	// InclProductLabels adds product descriptions. Codes missing from the
	// release's reference tables label as nil; requesting labels never
	// changes the row count.
	InclCountryLabels bool
	InclProductLabels bool
}

// Importer is the user-facing BACI object. It caches the version catalog
// for its lifetime and one materialized reader per (release, HS revision)
// pair, so repeated GetData calls differing only in filters reuse the
// already-extracted data.
//
// An Importer is not safe for concurrent use; it holds no locks. Run one
// instance per goroutine when parallelism is needed — instances share
// nothing but the process-wide logger.
type Importer struct {
	client          *http.Client
	catalogURL      string
	downloadBaseURL string
	cacheDir        string

	versions map[string]Release
	latest   string

	// data caches materialized readers: version -> hs version -> reader.
	data map[string]map[string]*dataManager

	// persistentRoots tracks store directories this instance created under
	// cacheDir, for ClearDiskCache.
	persistentRoots []string
}

// Option configures an Importer.
type Option func(*Importer)

// WithHTTPClient replaces the HTTP client. Callers wanting timeouts or
// cancellation on the multi-gigabyte downloads set them here; the importer
// itself never retries.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Importer) { i.client = client }
}

// WithCacheDir sets a persistent directory for extracted data. Stores under
// it survive the process and are reused by later sessions without
// re-downloading.
func WithCacheDir(dir string) Option {
	return func(i *Importer) { i.cacheDir = dir }
}

// WithCatalogURL overrides the version-listing page URL.
func WithCatalogURL(url string) Option {
	return func(i *Importer) { i.catalogURL = url }
}

// WithDownloadBaseURL overrides the archive download base URL.
func WithDownloadBaseURL(url string) Option {
	return func(i *Importer) { i.downloadBaseURL = url }
}

// New creates a BACI importer. Settings come from the module configuration
// (defaults plus BBLOCKS_ environment overrides), then from options.
func New(opts ...Option) (*Importer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	imp := &Importer{
		client:          &http.Client{Timeout: cfg.HTTPTimeout},
		catalogURL:      cfg.BACI.CatalogURL,
		downloadBaseURL: cfg.BACI.DownloadBaseURL,
		cacheDir:        cfg.CacheDir,
		data:            make(map[string]map[string]*dataManager),
	}

	for _, opt := range opts {
		opt(imp)
	}

	return imp, nil
}

// GetAvailableVersions returns the releases discovered on the CEPII page,
// keyed by release id, with their supported HS revisions and the latest
// marker. The catalog is fetched once and cached for the Importer's
// lifetime.
func (i *Importer) GetAvailableVersions() (map[string]Release, error) {
	if err := i.loadVersions(); err != nil {
		return nil, err
	}
	return i.versions, nil
}

func (i *Importer) loadVersions() error {
	if i.versions != nil {
		return nil
	}

	logging.Info().Msg("Finding available BACI versions and HS classifications")

	versions, err := fetchCatalog(i.client, i.catalogURL)
	if err != nil {
		return err
	}

	i.versions = versions
	i.latest = ""
	for version, release := range versions {
		if release.Latest {
			i.latest = version
			break
		}
	}
	return nil
}

// resolveVersion maps the "latest" selector (or an empty version) to the
// catalog entry marked latest, and validates explicit ids.
func (i *Importer) resolveVersion(version string) (string, error) {
	if version == "" || strings.EqualFold(version, VersionLatest) {
		if i.latest == "" {
			return "", &importers.ConfigurationError{Msg: "no BACI release is marked latest in the version catalog"}
		}
		return i.latest, nil
	}
	return version, nil
}

// loadData returns the materialized reader for the requested pair, running
// the fetch/extract pipeline only on a cache miss. Filter arguments never
// influence caching.
func (i *Importer) loadData(baciVersion, hsVersion string) (*dataManager, error) {
	if err := i.loadVersions(); err != nil {
		return nil, err
	}

	version, err := i.resolveVersion(baciVersion)
	if err != nil {
		return nil, err
	}

	release, ok := i.versions[version]
	if !ok {
		return nil, importers.NewInvalidRequestError(
			"%s is not a valid BACI version; call GetAvailableVersions to see available versions, or use %q for the most recent one",
			version, VersionLatest)
	}
	if !slices.Contains(release.HSVersions, hsVersion) {
		return nil, importers.NewInvalidRequestError(
			"%s is not a valid HS version for BACI version %s; available HS versions are: %s",
			hsVersion, version, strings.Join(release.HSVersions, ", "))
	}

	if mgr, ok := i.data[version][hsVersion]; ok {
		metrics.CacheHits.WithLabelValues("baci").Inc()
		return mgr, nil
	}
	metrics.CacheMisses.WithLabelValues("baci").Inc()

	mgr, err := i.materialize(version, hsVersion)
	if err != nil {
		return nil, err
	}

	if i.data[version] == nil {
		i.data[version] = make(map[string]*dataManager)
	}
	i.data[version][hsVersion] = mgr
	return mgr, nil
}

// materialize builds a reader for the pair: from the persistent store when
// a valid one exists, otherwise by downloading and ingesting the archive.
func (i *Importer) materialize(version, hsVersion string) (*dataManager, error) {
	root := ""
	if i.cacheDir != "" {
		root = i.storeRoot(version, hsVersion)
	}

	st, err := newStore(root)
	if err != nil {
		return nil, err
	}

	mgr := newDataManager(version, hsVersion, st)

	if root != "" {
		i.persistentRoots = append(i.persistentRoots, root)
		if st.valid() {
			restoreErr := mgr.restore()
			if restoreErr == nil {
				return mgr, nil
			}
			logging.Warn().Err(restoreErr).Str("path", root).Msg("Cached store unusable, re-downloading")
		}
	}

	f := &fetcher{client: i.client, baseURL: i.downloadBaseURL}
	archive, err := f.fetch(version, hsVersion)
	if err != nil {
		closeQuietly(mgr)
		return nil, err
	}
	mgr.archive = archive

	if err := mgr.load(); err != nil {
		closeQuietly(mgr)
		return nil, fmt.Errorf("failed to load BACI version %s, HS version %s: %w", version, hsVersion, err)
	}

	return mgr, nil
}

func (i *Importer) storeRoot(version, hsVersion string) string {
	return filepath.Join(i.cacheDir, fmt.Sprintf("BACI_%s_V%s", hsVersion, version))
}

// GetData returns the trade data matching the request. The first call for a
// (release, HS revision) pair downloads and extracts the archive; later
// calls with any filters reuse the materialized reader.
func (i *Importer) GetData(req DataRequest) ([]TradeRecord, error) {
	if req.HSVersion == "" {
		return nil, importers.NewInvalidRequestError("HSVersion is required (e.g. \"HS22\")")
	}

	mgr, err := i.loadData(req.BACIVersion, req.HSVersion)
	if err != nil {
		return nil, err
	}

	return mgr.getDataFrame(req.Years, req.Products, req.InclCountryLabels, req.InclProductLabels)
}

// GetAvailableYears returns the years physically present for the pair.
func (i *Importer) GetAvailableYears(hsVersion, baciVersion string) ([]int, error) {
	mgr, err := i.loadData(baciVersion, hsVersion)
	if err != nil {
		return nil, err
	}
	return slices.Clone(mgr.availableYears), nil
}

// GetAvailableCountries returns the release's country reference table.
func (i *Importer) GetAvailableCountries(hsVersion, baciVersion string) ([]Country, error) {
	mgr, err := i.loadData(baciVersion, hsVersion)
	if err != nil {
		return nil, err
	}
	return slices.Clone(mgr.countries), nil
}

// GetProductDescriptions returns the release's product reference table.
func (i *Importer) GetProductDescriptions(hsVersion, baciVersion string) ([]ProductEntry, error) {
	mgr, err := i.loadData(baciVersion, hsVersion)
	if err != nil {
		return nil, err
	}
	return slices.Clone(mgr.products), nil
}

// GetHSMap returns product descriptions keyed by product code.
func (i *Importer) GetHSMap(hsVersion, baciVersion string) (map[string]string, error) {
	mgr, err := i.loadData(baciVersion, hsVersion)
	if err != nil {
		return nil, err
	}
	hsMap := make(map[string]string, len(mgr.productByCode))
	for code, desc := range mgr.productByCode {
		hsMap[code] = desc
	}
	return hsMap, nil
}

// GetMetadata returns the release metadata parsed from its documentation
// file (version, release date, licence, citation, ...).
func (i *Importer) GetMetadata(hsVersion, baciVersion string) (map[string]string, error) {
	mgr, err := i.loadData(baciVersion, hsVersion)
	if err != nil {
		return nil, err
	}
	metadata := make(map[string]string, len(mgr.metadata))
	for k, v := range mgr.metadata {
		metadata[k] = v
	}
	return metadata, nil
}

// SaveRawData writes the raw release archive to path as a zip file. It
// refuses to overwrite an existing file unless override is set. When the
// reader was restored from the disk cache the archive is downloaded first.
func (i *Importer) SaveRawData(path, hsVersion, baciVersion string, override bool) error {
	mgr, err := i.loadData(baciVersion, hsVersion)
	if err != nil {
		return err
	}

	if mgr.archive == nil {
		f := &fetcher{client: i.client, baseURL: i.downloadBaseURL}
		archive, err := f.fetch(mgr.version, mgr.hsVersion)
		if err != nil {
			return err
		}
		mgr.archive = archive
	}

	return mgr.archive.save(path, override)
}

// ClearCache discards every cached reader, the cached version catalog, and
// any scratch storage created for in-memory sessions. Data already returned
// to callers is unaffected. Persistent on-disk stores survive; see
// ClearDiskCache.
func (i *Importer) ClearCache() {
	for _, byHS := range i.data {
		for _, mgr := range byHS {
			closeQuietly(mgr)
		}
	}
	i.data = make(map[string]map[string]*dataManager)
	i.versions = nil
	i.latest = ""
	logging.Info().Msg("Cache cleared")
}

// ClearDiskCache clears the in-memory cache and additionally removes the
// persistent store directories this instance created under its cache
// directory.
func (i *Importer) ClearDiskCache() error {
	i.ClearCache()

	var firstErr error
	for _, root := range i.persistentRoots {
		if err := os.RemoveAll(root); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	i.persistentRoots = nil
	return firstErr
}

// closeQuietly closes a reader and logs any error; cleanup in error paths
// is best-effort.
func closeQuietly(mgr *dataManager) {
	if mgr == nil {
		return
	}
	if err := mgr.close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing data manager")
	}
}
