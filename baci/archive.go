// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/importers"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/logging"
)

const (
	countryCodesPrefix = "country_codes"
	productCodesPrefix = "product_codes"
	readmeName         = "Readme.txt"
)

// dataManager is the materialized reader for one (release, HS revision)
// pair: the year-partitioned store plus the reference directories and
// metadata needed to answer queries. It is created lazily on the first
// request for the pair and cached by the facade.
type dataManager struct {
	version   string
	hsVersion string

	archive *Archive // nil when restored from a persistent store
	store   *store

	countries     []Country
	countryByCode map[int32]Country
	products      []ProductEntry
	productByCode map[string]string
	metadata      map[string]string

	availableYears []int

	loaded bool
}

func newDataManager(version, hsVersion string, st *store) *dataManager {
	return &dataManager{
		version:   version,
		hsVersion: hsVersion,
		store:     st,
	}
}

// dataMemberRe matches per-year data members for an HS revision and
// captures the year: BACI_HS22_Y2022_V202501.csv
func dataMemberRe(hsVersion string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^BACI_%s_Y(\d{4}).*\.csv$`, regexp.QuoteMeta(hsVersion)))
}

// load ingests the archive into the store and builds the reference
// directories and metadata. It is idempotent: repeated calls after the
// first success are no-ops.
func (m *dataManager) load() error {
	if m.loaded {
		return nil
	}
	if m.archive == nil {
		return fmt.Errorf("no archive attached for BACI version %s, HS version %s", m.version, m.hsVersion)
	}

	logging.Info().
		Str("baci_version", m.version).
		Str("hs_version", m.hsVersion).
		Msg("Extracting BACI data")

	if err := m.ingestDataMembers(); err != nil {
		return err
	}
	if err := m.readCountryCodes(); err != nil {
		return err
	}
	if err := m.readProductCodes(); err != nil {
		return err
	}
	if err := m.readMetadata(); err != nil {
		return err
	}
	if err := m.persistReferenceFiles(); err != nil {
		return err
	}

	years, err := m.store.partitionYears()
	if err != nil {
		return err
	}
	m.availableYears = years

	if err := m.store.writeManifest(m.version, m.hsVersion, years); err != nil {
		return err
	}

	m.loaded = true
	return nil
}

// ingestDataMembers streams every per-year data member through a typed CSV
// parse into its year partition, one member at a time so the full
// multi-year dataset is never held in memory.
func (m *dataManager) ingestDataMembers() error {
	re := dataMemberRe(m.hsVersion)

	matched := false
	for _, member := range m.archive.members() {
		sub := re.FindStringSubmatch(member.Name)
		if sub == nil {
			continue
		}
		matched = true

		if member.UncompressedSize64 == 0 {
			logging.Warn().Str("member", member.Name).Msg("Skipping empty data file")
			continue
		}

		year, _ := strconv.Atoi(sub[1])
		if err := m.ingestMember(member.Name, year); err != nil {
			return err
		}
	}

	if !matched {
		return &importers.NotFoundError{
			Name: fmt.Sprintf("BACI_%s_Y*.csv", m.hsVersion),
			Msg:  fmt.Sprintf("no data files found for HS version %s", m.hsVersion),
		}
	}
	return nil
}

// ingestMember extracts one member to a temporary CSV file and writes it as
// the partition for year. The temporary file is removed on every path.
func (m *dataManager) ingestMember(name string, year int) error {
	rc, err := m.archive.open(name)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Str("member", name).Msg("Error closing archive member")
		}
	}()

	tmp, err := os.CreateTemp("", "baci-member-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			logging.Warn().Err(rmErr).Msg("Error removing temporary member file")
		}
	}()

	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to extract member %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush member %s: %w", name, err)
	}

	if err := m.store.writePartitionCSV(year, tmp.Name()); err != nil {
		return &importers.FormattingError{Source: name, Msg: err.Error()}
	}
	return nil
}

// findMember locates exactly one member by filename prefix.
func (m *dataManager) findMember(prefix string) (string, error) {
	for _, member := range m.archive.members() {
		if strings.HasPrefix(member.Name, prefix) {
			return member.Name, nil
		}
	}
	return "", &importers.NotFoundError{
		Name: prefix,
		Msg:  fmt.Sprintf("no member with prefix %q in archive", prefix),
	}
}

// readCountryCodes builds the country directory from the reference member.
// A malformed or empty reference file yields an empty directory, not an
// error: label joins then produce nulls for every code.
func (m *dataManager) readCountryCodes() error {
	name, err := m.findMember(countryCodesPrefix)
	if err != nil {
		return err
	}

	rows, err := m.readReferenceCSV(name)
	if err != nil {
		return err
	}

	m.countries = nil
	m.countryByCode = make(map[int32]Country)

	for _, row := range rows {
		code, convErr := strconv.ParseInt(row["country_code"], 10, 32)
		if convErr != nil {
			continue
		}
		c := Country{
			Code: int32(code),
			Name: row["country_name"],
			ISO2: row["country_iso2"],
			ISO3: row["country_iso3"],
		}
		m.countries = append(m.countries, c)
		m.countryByCode[c.Code] = c
	}

	if len(m.countries) == 0 {
		logging.Warn().Str("member", name).Msg("Country reference file yielded no entries")
	}
	return nil
}

// readProductCodes builds the product directory from the reference member,
// with the same degrade-to-empty behavior as readCountryCodes.
func (m *dataManager) readProductCodes() error {
	name, err := m.findMember(productCodesPrefix)
	if err != nil {
		return err
	}

	rows, err := m.readReferenceCSV(name)
	if err != nil {
		return err
	}

	m.products = nil
	m.productByCode = make(map[string]string)

	for _, row := range rows {
		code := row["code"]
		if code == "" {
			continue
		}
		p := ProductEntry{Code: code, Description: row["description"]}
		m.products = append(m.products, p)
		m.productByCode[p.Code] = p.Description
	}

	if len(m.products) == 0 {
		logging.Warn().Str("member", name).Msg("Product reference file yielded no entries")
	}
	return nil
}

// readReferenceCSV reads a small reference member into header-keyed rows.
// Malformed content degrades to zero rows rather than failing.
func (m *dataManager) readReferenceCSV(name string) ([]map[string]string, error) {
	rc, err := m.archive.open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Str("member", name).Msg("Error closing reference member")
		}
	}()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		logging.Warn().Err(err).Str("member", name).Msg("Reference file is empty or unreadable")
		return nil, nil
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Warn().Err(err).Str("member", name).Msg("Stopping at malformed reference row")
			break
		}
		row := make(map[string]string, len(header))
		for i, v := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readMetadata parses the release's Readme member into metadata entries.
func (m *dataManager) readMetadata() error {
	name, err := m.findMember(readmeName)
	if err != nil {
		return err
	}

	rc, err := m.archive.open(name)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Str("member", name).Msg("Error closing readme member")
		}
	}()

	content, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	metadata := parseReadme(string(content))
	if len(metadata) == 0 {
		return &importers.FormattingError{Source: name, Msg: "no metadata entries found"}
	}

	m.metadata = metadata
	return nil
}

// persistReferenceFiles copies the reference and documentation members next
// to the partitions so a persistent store can rebuild directories and
// metadata without the archive.
func (m *dataManager) persistReferenceFiles() error {
	// Member names carry release suffixes (country_codes_V202501.csv);
	// persisted copies use the canonical names restore expects.
	targets := []struct{ prefix, target string }{
		{countryCodesPrefix, countryCodesPrefix + ".csv"},
		{productCodesPrefix, productCodesPrefix + ".csv"},
		{readmeName, readmeName},
	}
	for _, t := range targets {
		name, err := m.findMember(t.prefix)
		if err != nil {
			return err
		}

		rc, err := m.archive.open(name)
		if err != nil {
			return err
		}

		data, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read member %s: %w", name, err)
		}
		if closeErr != nil {
			logging.Warn().Err(closeErr).Str("member", name).Msg("Error closing member after persist")
		}

		target := filepath.Join(m.store.root, t.target)
		if err := os.WriteFile(target, data, 0o600); err != nil {
			return fmt.Errorf("failed to persist %s: %w", name, err)
		}
	}
	return nil
}

// restore rebuilds the manager from a persistent store root written by an
// earlier session, without downloading the archive.
func (m *dataManager) restore() error {
	manifest, err := m.store.readManifest()
	if err != nil {
		return fmt.Errorf("failed to read store manifest: %w", err)
	}
	if manifest.Version != m.version || manifest.HSVersion != m.hsVersion {
		return fmt.Errorf("store at %s holds BACI %s/%s, wanted %s/%s",
			m.store.root, manifest.Version, manifest.HSVersion, m.version, m.hsVersion)
	}

	if err := m.restoreCountryCodes(); err != nil {
		return err
	}
	if err := m.restoreProductCodes(); err != nil {
		return err
	}
	if err := m.restoreMetadata(); err != nil {
		return err
	}

	years, err := m.store.partitionYears()
	if err != nil {
		return err
	}
	m.availableYears = years

	m.loaded = true
	logging.Info().
		Str("baci_version", m.version).
		Str("hs_version", m.hsVersion).
		Str("path", m.store.root).
		Msg("Reusing cached BACI data from disk")
	return nil
}

func (m *dataManager) restoreCountryCodes() error {
	rows, err := m.readReferenceFileFromDisk(countryCodesPrefix + ".csv")
	if err != nil {
		return err
	}

	m.countries = nil
	m.countryByCode = make(map[int32]Country)
	for _, row := range rows {
		code, convErr := strconv.ParseInt(row["country_code"], 10, 32)
		if convErr != nil {
			continue
		}
		c := Country{Code: int32(code), Name: row["country_name"], ISO2: row["country_iso2"], ISO3: row["country_iso3"]}
		m.countries = append(m.countries, c)
		m.countryByCode[c.Code] = c
	}
	return nil
}

func (m *dataManager) restoreProductCodes() error {
	rows, err := m.readReferenceFileFromDisk(productCodesPrefix + ".csv")
	if err != nil {
		return err
	}

	m.products = nil
	m.productByCode = make(map[string]string)
	for _, row := range rows {
		code := row["code"]
		if code == "" {
			continue
		}
		m.products = append(m.products, ProductEntry{Code: code, Description: row["description"]})
		m.productByCode[code] = row["description"]
	}
	return nil
}

func (m *dataManager) restoreMetadata() error {
	content, err := os.ReadFile(filepath.Join(m.store.root, readmeName))
	if err != nil {
		return &importers.NotFoundError{Name: readmeName, Msg: "documentation file absent from cached store"}
	}
	metadata := parseReadme(string(content))
	if len(metadata) == 0 {
		return &importers.FormattingError{Source: readmeName, Msg: "no metadata entries found"}
	}
	m.metadata = metadata
	return nil
}

// readReferenceFileFromDisk mirrors readReferenceCSV for persisted copies.
func (m *dataManager) readReferenceFileFromDisk(name string) ([]map[string]string, error) {
	f, err := os.Open(filepath.Join(m.store.root, name))
	if err != nil {
		return nil, &importers.NotFoundError{Name: name, Msg: "reference file absent from cached store"}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Str("file", name).Msg("Error closing reference file")
		}
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		row := make(map[string]string, len(header))
		for i, v := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// getDataFrame reads the records matching the supplied filters and applies
// the requested label joins. Unresolved codes join to nil labels; the row
// count never changes as a side effect of requesting labels.
func (m *dataManager) getDataFrame(years *YearFilter, products *ProductFilter, inclCountryLabels, inclProductLabels bool) ([]TradeRecord, error) {
	where, args, err := buildWhere(years, products)
	if err != nil {
		return nil, err
	}

	var partitions []int
	if years != nil {
		partitions = years.partitionYears(m.availableYears)
	}

	records, err := m.store.read(partitions, where, args)
	if err != nil {
		return nil, err
	}

	if inclCountryLabels {
		m.addCountryLabels(records)
	}
	if inclProductLabels {
		m.addProductLabels(records)
	}

	return records, nil
}

func (m *dataManager) addCountryLabels(records []TradeRecord) {
	for i := range records {
		if c, ok := m.countryByCode[records[i].ExporterCode]; ok {
			name, iso3 := c.Name, c.ISO3
			records[i].ExporterName = &name
			records[i].ExporterISO3 = &iso3
		}
		if c, ok := m.countryByCode[records[i].ImporterCode]; ok {
			name, iso3 := c.Name, c.ISO3
			records[i].ImporterName = &name
			records[i].ImporterISO3 = &iso3
		}
	}
}

func (m *dataManager) addProductLabels(records []TradeRecord) {
	for i := range records {
		if desc, ok := m.productByCode[records[i].ProductCode]; ok {
			d := desc
			records[i].ProductDescription = &d
		}
	}
}

// close releases the store and any scratch space.
func (m *dataManager) close() error {
	if m.store == nil {
		return nil
	}
	err := m.store.close()
	m.store = nil
	return err
}
