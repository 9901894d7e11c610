// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

// Package baci imports the CEPII BACI international trade dataset.
//
// BACI provides bilateral trade flows for more than 200 countries and over
// 5,000 products at the 6-digit Harmonized System (HS) level, with values in
// thousands of USD and quantities in metric tons. Releases are published on
// the CEPII site as multi-gigabyte ZIP archives of per-year CSV files, one
// archive per (release, HS revision) pair.
//
// The importer discovers available releases by scraping the CEPII version
// page, downloads the archive for a requested pair, streams its per-year CSV
// members into year-partitioned Parquet through DuckDB, and answers filtered
// queries against those partitions without re-reading the full dataset.
// Readers are cached per (release, HS revision) pair: repeated GetData calls
// that differ only in filters never re-download.
//
//	imp, err := baci.New()
//	if err != nil { ... }
//	defer imp.ClearCache()
//
//	data, err := imp.GetData(baci.DataRequest{
//		HSVersion:         "HS22",
//		Years:             baci.YearRange(2020, 2022),
//		InclCountryLabels: true,
//	})
//
// By default extracted data lives in a scratch temporary directory removed
// by ClearCache. With a persistent cache directory (WithCacheDir or
// BBLOCKS_CACHE_DIR) the Parquet partitions survive the process and later
// sessions reuse them without re-downloading.
//
// An Importer instance is not safe for concurrent use. Callers needing
// parallelism should run one instance per goroutine; instances share no
// state beyond the process-wide logger.
package baci
