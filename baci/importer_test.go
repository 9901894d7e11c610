// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/importers"
)

var _ importers.Importer = (*Importer)(nil)

// newTestServer serves the version catalog page and the release archive,
// counting archive downloads so tests can assert on fetch behavior.
func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	zipBytes := buildZip(t, archiveMembers())
	var downloads atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(versionPageHTML))
	})
	mux.HandleFunc("/BACI_HS22_V202501.zip", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		_, _ = w.Write(zipBytes)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &downloads
}

func newTestImporter(t *testing.T, srv *httptest.Server, opts ...Option) *Importer {
	t.Helper()

	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithCatalogURL(srv.URL + "/catalog"),
		WithDownloadBaseURL(srv.URL),
	}, opts...)

	imp, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(imp.ClearCache)
	return imp
}

func TestImporterGetData(t *testing.T) {
	srv, downloads := newTestServer(t)
	imp := newTestImporter(t, srv)

	records, err := imp.GetData(DataRequest{HSVersion: "HS22"})
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Repeated requests differing only in filters reuse the materialized
	// data; the archive is fetched once.
	filtered, err := imp.GetData(DataRequest{HSVersion: "HS22", Years: Year(2022)})
	if err != nil {
		t.Fatalf("filtered GetData failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("expected 1 record for 2022, got %d", len(filtered))
	}

	if _, err := imp.GetData(DataRequest{HSVersion: "HS22", Products: Product("010121"), InclProductLabels: true}); err != nil {
		t.Fatalf("product-filtered GetData failed: %v", err)
	}

	if got := downloads.Load(); got != 1 {
		t.Errorf("expected 1 archive download across varied requests, got %d", got)
	}
}

func TestImporterLatestResolution(t *testing.T) {
	srv, _ := newTestServer(t)
	imp := newTestImporter(t, srv)

	for _, version := range []string{"", "latest", "LATEST", "202501"} {
		if _, err := imp.GetData(DataRequest{HSVersion: "HS22", BACIVersion: version}); err != nil {
			t.Errorf("GetData with version %q failed: %v", version, err)
		}
	}
}

func TestImporterInvalidRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	imp := newTestImporter(t, srv)

	var invalidErr *importers.InvalidRequestError

	if _, err := imp.GetData(DataRequest{}); !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidRequestError for missing HS version, got %v", err)
	}

	_, err := imp.GetData(DataRequest{HSVersion: "HS22", BACIVersion: "199001"})
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidRequestError for unknown release, got %v", err)
	}
	if !strings.Contains(err.Error(), "GetAvailableVersions") {
		t.Errorf("unknown-release error should point at GetAvailableVersions: %v", err)
	}

	_, err = imp.GetData(DataRequest{HSVersion: "HS96", BACIVersion: "202501"})
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidRequestError for unsupported HS version, got %v", err)
	}
	// The message lists what the release actually supports.
	if !strings.Contains(err.Error(), "HS22") || !strings.Contains(err.Error(), "HS17") {
		t.Errorf("unsupported-HS error should list available HS versions: %v", err)
	}
}

func TestImporterGetAvailableVersions(t *testing.T) {
	srv, _ := newTestServer(t)
	imp := newTestImporter(t, srv)

	versions, err := imp.GetAvailableVersions()
	if err != nil {
		t.Fatalf("GetAvailableVersions failed: %v", err)
	}
	if len(versions) != 4 {
		t.Errorf("expected 4 releases, got %d", len(versions))
	}
	if !versions["202501"].Latest {
		t.Error("expected 202501 to be marked latest")
	}
}

func TestImporterAccessors(t *testing.T) {
	srv, downloads := newTestServer(t)
	imp := newTestImporter(t, srv)

	years, err := imp.GetAvailableYears("HS22", "latest")
	if err != nil {
		t.Fatalf("GetAvailableYears failed: %v", err)
	}
	if want := []int{2022, 2023}; !reflect.DeepEqual(years, want) {
		t.Errorf("years = %v, want %v", years, want)
	}

	countries, err := imp.GetAvailableCountries("HS22", "latest")
	if err != nil {
		t.Fatalf("GetAvailableCountries failed: %v", err)
	}
	if len(countries) != 2 {
		t.Errorf("expected 2 countries, got %d", len(countries))
	}

	products, err := imp.GetProductDescriptions("HS22", "latest")
	if err != nil {
		t.Fatalf("GetProductDescriptions failed: %v", err)
	}
	if len(products) != 2 {
		t.Errorf("expected 2 products, got %d", len(products))
	}

	hsMap, err := imp.GetHSMap("HS22", "latest")
	if err != nil {
		t.Fatalf("GetHSMap failed: %v", err)
	}
	if _, ok := hsMap["010121"]; !ok {
		t.Error("expected product 010121 in HS map")
	}

	metadata, err := imp.GetMetadata("HS22", "latest")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if metadata["Version"] != "202501" {
		t.Errorf("metadata[Version] = %q, want 202501", metadata["Version"])
	}

	// Every accessor shares one materialized reader.
	if got := downloads.Load(); got != 1 {
		t.Errorf("expected 1 archive download across accessors, got %d", got)
	}
}

func TestImporterClearCache(t *testing.T) {
	srv, downloads := newTestServer(t)
	imp := newTestImporter(t, srv)

	if _, err := imp.GetData(DataRequest{HSVersion: "HS22"}); err != nil {
		t.Fatalf("GetData failed: %v", err)
	}

	imp.ClearCache()

	if _, err := imp.GetData(DataRequest{HSVersion: "HS22"}); err != nil {
		t.Fatalf("GetData after ClearCache failed: %v", err)
	}
	if got := downloads.Load(); got != 2 {
		t.Errorf("expected a fresh download after ClearCache, got %d total", got)
	}
}

func TestImporterPersistentCacheReuse(t *testing.T) {
	srv, downloads := newTestServer(t)
	cacheDir := t.TempDir()

	first := newTestImporter(t, srv, WithCacheDir(cacheDir))
	if _, err := first.GetData(DataRequest{HSVersion: "HS22"}); err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	first.ClearCache()

	// A separate session over the same cache directory restores from disk
	// instead of downloading again.
	second := newTestImporter(t, srv, WithCacheDir(cacheDir))
	records, err := second.GetData(DataRequest{HSVersion: "HS22", Years: Year(2023), InclCountryLabels: true})
	if err != nil {
		t.Fatalf("GetData from cached store failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records for 2023, got %d", len(records))
	}

	if got := downloads.Load(); got != 1 {
		t.Errorf("expected the cached store to be reused without downloading, got %d downloads", got)
	}
}

func TestImporterClearDiskCache(t *testing.T) {
	srv, _ := newTestServer(t)
	cacheDir := t.TempDir()

	imp := newTestImporter(t, srv, WithCacheDir(cacheDir))
	if _, err := imp.GetData(DataRequest{HSVersion: "HS22"}); err != nil {
		t.Fatalf("GetData failed: %v", err)
	}

	root := filepath.Join(cacheDir, "BACI_HS22_V202501")
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("expected persistent store at %s: %v", root, err)
	}

	if err := imp.ClearDiskCache(); err != nil {
		t.Fatalf("ClearDiskCache failed: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("persistent store must be removed, stat err = %v", err)
	}
}

func TestImporterSaveRawData(t *testing.T) {
	srv, downloads := newTestServer(t)
	imp := newTestImporter(t, srv)

	path := filepath.Join(t.TempDir(), "baci.zip")
	if err := imp.SaveRawData(path, "HS22", "latest", false); err != nil {
		t.Fatalf("SaveRawData failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("saved archive missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("saved archive is empty")
	}
	if got := downloads.Load(); got != 1 {
		t.Errorf("expected 1 download, got %d", got)
	}
}

func TestImporterSaveRawDataAfterRestore(t *testing.T) {
	srv, downloads := newTestServer(t)
	cacheDir := t.TempDir()

	first := newTestImporter(t, srv, WithCacheDir(cacheDir))
	if _, err := first.GetData(DataRequest{HSVersion: "HS22"}); err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	first.ClearCache()

	// The restored reader has no archive in memory; saving re-fetches it.
	second := newTestImporter(t, srv, WithCacheDir(cacheDir))
	path := filepath.Join(t.TempDir(), "baci.zip")
	if err := second.SaveRawData(path, "HS22", "latest", false); err != nil {
		t.Fatalf("SaveRawData after restore failed: %v", err)
	}
	if got := downloads.Load(); got != 2 {
		t.Errorf("expected a second download for the raw archive, got %d", got)
	}
}
