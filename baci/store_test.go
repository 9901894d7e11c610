// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeYearCSV writes a per-year CSV file in the source layout: short column
// names, "NA" for missing quantities.
func writeYearCSV(t *testing.T, dir string, year int, rows []string) string {
	t.Helper()

	content := "t,i,j,k,v,q\n"
	for _, row := range rows {
		content += row + "\n"
	}
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}
	return path
}

func newScratchStore(t *testing.T) *store {
	t.Helper()

	st, err := newStore("")
	if err != nil {
		t.Fatalf("failed to open scratch store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return st
}

func TestStoreWriteAndRead(t *testing.T) {
	t.Parallel()

	st := newScratchStore(t)

	csv2022 := writeYearCSV(t, t.TempDir(), 2022, []string{
		"2022,250,276,010121,1234.5,10.5",
	})
	if err := st.writePartitionCSV(2022, csv2022); err != nil {
		t.Fatalf("writePartitionCSV failed: %v", err)
	}

	csv2023 := writeYearCSV(t, t.TempDir(), 2023, []string{
		"2023,250,276,010121,2000,NA",
		"2023,276,250,020110,300.25,7",
	})
	if err := st.writePartitionCSV(2023, csv2023); err != nil {
		t.Fatalf("writePartitionCSV failed: %v", err)
	}

	years, err := st.partitionYears()
	if err != nil {
		t.Fatalf("partitionYears failed: %v", err)
	}
	if want := []int{2022, 2023}; !reflect.DeepEqual(years, want) {
		t.Fatalf("partitionYears = %v, want %v", years, want)
	}

	records, err := st.read(nil, "1=1", nil)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	var nilQuantity, withQuantity int
	for _, rec := range records {
		if rec.Quantity == nil {
			nilQuantity++
		} else {
			withQuantity++
		}
	}
	if nilQuantity != 1 || withQuantity != 2 {
		t.Errorf("expected 1 missing and 2 present quantities, got %d/%d", nilQuantity, withQuantity)
	}
}

func TestStoreRewriteIsIdempotent(t *testing.T) {
	t.Parallel()

	st := newScratchStore(t)

	csvPath := writeYearCSV(t, t.TempDir(), 2022, []string{
		"2022,250,276,010121,1234.5,10.5",
		"2022,276,250,020110,500,2",
	})

	for range 2 {
		if err := st.writePartitionCSV(2022, csvPath); err != nil {
			t.Fatalf("writePartitionCSV failed: %v", err)
		}
	}

	records, err := st.read(nil, "1=1", nil)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("re-ingesting a year must replace the partition, got %d records", len(records))
	}
}

func TestStoreReadWithPredicate(t *testing.T) {
	t.Parallel()

	st := newScratchStore(t)

	csvPath := writeYearCSV(t, t.TempDir(), 2022, []string{
		"2022,250,276,010121,1234.5,10.5",
		"2022,276,250,020110,500,2",
	})
	if err := st.writePartitionCSV(2022, csvPath); err != nil {
		t.Fatalf("writePartitionCSV failed: %v", err)
	}

	records, err := st.read(nil, "1=1 AND product_code = ?", []any{"010121"})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Year != 2022 || rec.ExporterCode != 250 || rec.ImporterCode != 276 {
		t.Errorf("unexpected record identity: %+v", rec)
	}
	if rec.ProductCode != "010121" {
		t.Errorf("product code = %q, want 010121 (leading zero must survive)", rec.ProductCode)
	}
	if rec.Value != 1234.5 {
		t.Errorf("value = %v, want 1234.5", rec.Value)
	}
	if rec.Quantity == nil || *rec.Quantity != 10.5 {
		t.Errorf("quantity = %v, want 10.5", rec.Quantity)
	}
}

func TestStoreReadPartitionPruning(t *testing.T) {
	t.Parallel()

	st := newScratchStore(t)

	for _, year := range []int{2022, 2023} {
		csvPath := writeYearCSV(t, t.TempDir(), year, []string{
			"2022,250,276,010121,100,1",
		})
		if err := st.writePartitionCSV(year, csvPath); err != nil {
			t.Fatalf("writePartitionCSV failed: %v", err)
		}
	}

	// Restricting to one partition reads only that one.
	records, err := st.read([]int{2023}, "1=1", nil)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record from the selected partition, got %d", len(records))
	}

	// An empty selection reads nothing and never errors.
	records, err = st.read([]int{}, "1=1", nil)
	if err != nil {
		t.Fatalf("read with empty selection failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestStoreManifest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st, err := newStore(root)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	// No manifest, no partitions: not reusable.
	if st.valid() {
		t.Error("empty store must not be valid")
	}

	csvPath := writeYearCSV(t, t.TempDir(), 2022, []string{
		"2022,250,276,010121,100,1",
	})
	if err := st.writePartitionCSV(2022, csvPath); err != nil {
		t.Fatalf("writePartitionCSV failed: %v", err)
	}

	// Partitions without a manifest are still not reusable.
	if st.valid() {
		t.Error("store without a manifest must not be valid")
	}

	if err := st.writeManifest("202501", "HS22", []int{2022}); err != nil {
		t.Fatalf("writeManifest failed: %v", err)
	}
	if !st.valid() {
		t.Error("store with manifest and partitions must be valid")
	}

	m, err := st.readManifest()
	if err != nil {
		t.Fatalf("readManifest failed: %v", err)
	}
	if m.Version != "202501" || m.HSVersion != "HS22" {
		t.Errorf("unexpected manifest identity: %s/%s", m.Version, m.HSVersion)
	}
	if want := []int{2022}; !reflect.DeepEqual(m.Years, want) {
		t.Errorf("manifest years = %v, want %v", m.Years, want)
	}
	if m.CreatedAt.IsZero() {
		t.Error("manifest creation time must be set")
	}
}

func TestStoreScratchCleanup(t *testing.T) {
	t.Parallel()

	st, err := newStore("")
	if err != nil {
		t.Fatalf("failed to open scratch store: %v", err)
	}

	root := st.root
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("scratch root missing before close: %v", err)
	}

	if err := st.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("scratch root must be removed on close, stat err = %v", err)
	}
}

func TestSQLQuote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/tmp/data.parquet", "'/tmp/data.parquet'"},
		{"o'brien", "'o''brien'"},
	}
	for _, tt := range tests {
		if got := sqlQuote(tt.in); got != tt.want {
			t.Errorf("sqlQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
