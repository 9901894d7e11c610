// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/logging"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/metrics"
)

const (
	partitionFile = "data.parquet"
	manifestFile  = "manifest.json"
)

var partitionDirRe = regexp.MustCompile(`^year=(\d{4})$`)

// store persists one release's trade records as a directory of Parquet
// files, one partition per year, written and read through DuckDB. With an
// empty root it creates a scratch temporary directory that close removes;
// with a caller-supplied root the partitions outlive the process and later
// sessions reuse them.
type store struct {
	db      *sql.DB
	root    string
	scratch bool
}

// manifest records what a persistent store root contains so a later session
// can validate it before reuse.
type manifest struct {
	Version   string    `json:"baci_version"`
	HSVersion string    `json:"hs_version"`
	Years     []int     `json:"years"`
	CreatedAt time.Time `json:"created_at"`
}

// newStore opens a store at root. An empty root means a scratch session: a
// temporary directory owned by the store and removed on close.
func newStore(root string) (*store, error) {
	scratch := root == ""
	if scratch {
		dir, err := os.MkdirTemp("", "baci-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
		root = dir
	} else if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", root, err)
	}

	// An in-memory DuckDB instance; all persistent state is the Parquet
	// files themselves.
	db, err := sql.Open("duckdb", "")
	if err != nil {
		if scratch {
			_ = os.RemoveAll(root)
		}
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &store{db: db, root: root, scratch: scratch}, nil
}

// close releases the DuckDB handle and, for scratch sessions, removes the
// backing directory.
func (s *store) close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	if s.scratch {
		if rmErr := os.RemoveAll(s.root); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// writePartitionCSV ingests one per-year CSV file into the partition for
// year, replacing any existing partition atomically (write to a temp file,
// then rename). Re-ingesting a year is therefore idempotent rather than
// duplicating rows.
//
// Column types are explicit: year 16-bit, country codes 32-bit, product
// code string (leading zeros and alphanumeric forms must survive), value
// and quantity floating point. The source writes "NA" for missing
// quantities.
func (s *store) writePartitionCSV(year int, csvPath string) error {
	dir := filepath.Join(s.root, fmt.Sprintf("year=%d", year))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create partition directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, ".data.parquet.tmp")
	target := filepath.Join(dir, partitionFile)

	// COPY targets cannot be bound as parameters; paths are quoted
	// literals.
	query := fmt.Sprintf(`COPY (
		SELECT
			t AS year,
			i AS exporter_code,
			j AS importer_code,
			k AS product_code,
			v AS value,
			q AS quantity
		FROM read_csv(%s,
			header = true,
			nullstr = 'NA',
			columns = {'t': 'SMALLINT', 'i': 'INTEGER', 'j': 'INTEGER', 'k': 'VARCHAR', 'v': 'DOUBLE', 'q': 'DOUBLE'})
	) TO %s (FORMAT PARQUET)`, sqlQuote(csvPath), sqlQuote(tmp))

	if _, err := s.db.Exec(query); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write partition for year %d: %w", year, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit partition for year %d: %w", year, err)
	}

	metrics.PartitionWrites.WithLabelValues("baci").Inc()
	logging.Debug().Int("year", year).Str("partition", target).Msg("Partition written")
	return nil
}

// partitionYears lists the years physically present, sorted ascending.
func (s *store) partitionYears() ([]int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory %s: %w", s.root, err)
	}

	var years []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := partitionDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), partitionFile)); err != nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		years = append(years, year)
	}

	sort.Ints(years)
	return years, nil
}

// read returns the records matching the given WHERE clause, reading only
// the partitions for the listed years. A nil years slice means every
// partition. The clause must be non-empty ("1=1" for unrestricted reads)
// and parameterized through args.
func (s *store) read(years []int, where string, args []any) ([]TradeRecord, error) {
	start := time.Now()

	available, err := s.partitionYears()
	if err != nil {
		return nil, err
	}

	selected := available
	if years != nil {
		wanted := make(map[int]struct{}, len(years))
		for _, y := range years {
			wanted[y] = struct{}{}
		}
		selected = selected[:0:0]
		for _, y := range available {
			if _, ok := wanted[y]; ok {
				selected = append(selected, y)
			}
		}
	}

	if len(selected) == 0 {
		return []TradeRecord{}, nil
	}

	files := make([]string, len(selected))
	for i, y := range selected {
		files[i] = sqlQuote(filepath.Join(s.root, fmt.Sprintf("year=%d", y), partitionFile))
	}

	query := fmt.Sprintf(
		"SELECT year, exporter_code, importer_code, product_code, value, quantity FROM read_parquet([%s]) WHERE %s",
		strings.Join(files, ", "), where)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read partitions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Error closing partition rows")
		}
	}()

	records := []TradeRecord{}
	for rows.Next() {
		var rec TradeRecord
		var quantity sql.NullFloat64
		if err := rows.Scan(&rec.Year, &rec.ExporterCode, &rec.ImporterCode, &rec.ProductCode, &rec.Value, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		if quantity.Valid {
			q := quantity.Float64
			rec.Quantity = &q
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while reading partitions: %w", err)
	}

	metrics.QueryDuration.WithLabelValues("baci").Observe(time.Since(start).Seconds())
	return records, nil
}

// writeManifest records the store's contents for later-session validation.
func (s *store) writeManifest(version, hsVersion string, years []int) error {
	m := manifest{
		Version:   version,
		HSVersion: hsVersion,
		Years:     years,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, manifestFile), data, 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// readManifest loads the manifest from the store root.
func (s *store) readManifest() (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.root, manifestFile))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// valid reports whether the store root holds a reusable dataset: a readable
// manifest and at least one partition file.
func (s *store) valid() bool {
	if _, err := s.readManifest(); err != nil {
		return false
	}
	years, err := s.partitionYears()
	return err == nil && len(years) > 0
}

// sqlQuote wraps a string as a single-quoted SQL literal.
func sqlQuote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
