// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/importers"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/logging"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/metrics"
)

// Archive is one downloaded BACI release archive held in memory, validated
// as a well-formed ZIP.
type Archive struct {
	Version   string
	HSVersion string
	URL       string

	raw []byte
	zr  *zip.Reader
}

// downloadURL builds the deterministic archive URL for a release and HS
// revision: {base}/BACI_{hs}_V{version}.zip
func downloadURL(base, version, hsVersion string) string {
	return fmt.Sprintf("%s/BACI_%s_V%s.zip", base, hsVersion, version)
}

// fetcher downloads release archives. It performs exactly one GET per fetch
// with no retry: archives run to gigabytes, so retry policy is the caller's
// decision.
type fetcher struct {
	client  *http.Client
	baseURL string
}

// fetch downloads and validates the archive for a (release, HS revision)
// pair. A transport failure or non-2xx status and a corrupt body both yield
// an ExtractionError; the corrupt-body case wraps zip.ErrFormat so callers
// can tell the two apart when deciding whether a retry is worthwhile.
func (f *fetcher) fetch(version, hsVersion string) (*Archive, error) {
	url := downloadURL(f.baseURL, version, hsVersion)

	logging.Info().
		Str("baci_version", version).
		Str("hs_version", hsVersion).
		Str("url", url).
		Msg("Downloading BACI archive")

	start := time.Now()

	resp, err := f.client.Get(url)
	if err != nil {
		metrics.ArchiveDownloads.WithLabelValues("baci", "error").Inc()
		return nil, &importers.ExtractionError{Source: url, Msg: "failed to download BACI data", Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Error closing archive response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ArchiveDownloads.WithLabelValues("baci", "error").Inc()
		return nil, &importers.ExtractionError{Source: url, Msg: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ArchiveDownloads.WithLabelValues("baci", "error").Inc()
		return nil, &importers.ExtractionError{Source: url, Msg: "failed to read archive body", Err: err}
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		metrics.ArchiveDownloads.WithLabelValues("baci", "error").Inc()
		return nil, &importers.ExtractionError{Source: url, Msg: "response body is not a valid ZIP archive", Err: err}
	}

	metrics.ArchiveDownloads.WithLabelValues("baci", "success").Inc()
	metrics.ArchiveDownloadBytes.Add(float64(len(raw)))
	metrics.ArchiveDownloadDuration.Observe(time.Since(start).Seconds())

	logging.Info().
		Int("bytes", len(raw)).
		Dur("duration", time.Since(start)).
		Msg("BACI archive downloaded")

	return &Archive{
		Version:   version,
		HSVersion: hsVersion,
		URL:       url,
		raw:       raw,
		zr:        zr,
	}, nil
}

// members returns the archive's file listing.
func (a *Archive) members() []*zip.File {
	return a.zr.File
}

// open opens the named member for reading. The caller closes it.
func (a *Archive) open(name string) (io.ReadCloser, error) {
	for _, f := range a.zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, &importers.NotFoundError{Name: name, Msg: "member absent from archive"}
}

// save writes the raw archive to path. It refuses to overwrite an existing
// file unless override is set, and refuses to write into a directory that
// does not exist.
func (a *Archive) save(path string, override bool) error {
	if strings.ToLower(filepath.Ext(path)) != ".zip" {
		return importers.NewInvalidRequestError("the path must include a file name with a .zip extension: %s", filepath.Base(path))
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return &importers.NotFoundError{Name: dir, Msg: "directory does not exist"}
	}

	if _, err := os.Stat(path); err == nil && !override {
		return importers.NewInvalidRequestError("file %q already exists; set override to overwrite it", path)
	}

	if err := os.WriteFile(path, a.raw, 0o600); err != nil {
		return fmt.Errorf("failed to save archive to %s: %w", path, err)
	}

	logging.Info().
		Str("baci_version", a.Version).
		Str("hs_version", a.HSVersion).
		Str("path", path).
		Msg("Raw BACI archive saved")
	return nil
}
