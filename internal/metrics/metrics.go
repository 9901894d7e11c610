// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

// Package metrics provides Prometheus instrumentation for the importers:
// archive downloads, partition ingestion, query latency and facade cache
// efficiency. Collectors register on the default registry; embedding
// applications expose them however they serve metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Download metrics
	ArchiveDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bblocks_archive_downloads_total",
			Help: "Total number of archive download attempts",
		},
		[]string{"importer", "outcome"}, // outcome: "success", "error"
	)

	ArchiveDownloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bblocks_archive_download_bytes_total",
			Help: "Total bytes downloaded across all archives",
		},
	)

	ArchiveDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bblocks_archive_download_duration_seconds",
			Help:    "Duration of archive downloads in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}, // archives run to gigabytes
		},
	)

	// Ingestion metrics
	PartitionWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bblocks_partition_writes_total",
			Help: "Total number of columnar partition writes",
		},
		[]string{"importer"},
	)

	// Query metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bblocks_query_duration_seconds",
			Help:    "Duration of filtered data reads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"importer"},
	)

	// Facade cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bblocks_cache_hits_total",
			Help: "Total number of facade cache hits (reader reused)",
		},
		[]string{"importer"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bblocks_cache_misses_total",
			Help: "Total number of facade cache misses (fetch pipeline run)",
		},
		[]string{"importer"},
	)
)
