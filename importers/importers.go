// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

// Package importers defines the surface shared by every data importer in
// this module: the collaborator contract, the canonical field names used in
// returned tables, and the error taxonomy.
//
// Each importer package (baci, worldbank, ...) exposes a source-specific
// GetData method returning tidy records, plus ClearCache. GetData signatures
// differ per source (each source has its own filters), so the shared
// interface captures only the cache contract; the GetData capability is a
// documented convention, not a compile-time constraint.
package importers

// Importer is the capability pair every importer in this module provides.
// The companion GetData method is source-specific and therefore not part of
// the interface: callers hold the concrete importer type.
type Importer interface {
	// ClearCache discards all cached data held by the importer, including
	// any scratch storage it created. Data already returned to callers is
	// unaffected.
	ClearCache()
}

// Canonical field names shared across importers. Importers rename
// source-specific columns to these names so downstream code can join and
// reshape tables from different sources uniformly.
const (
	FieldYear               = "year"
	FieldExporterCode       = "exporter_code"
	FieldImporterCode       = "importer_code"
	FieldProductCode        = "product_code"
	FieldValue              = "value"
	FieldQuantity           = "quantity"
	FieldCountryCode        = "country_code"
	FieldCountryName        = "country_name"
	FieldISO2Code           = "iso2_code"
	FieldISO3Code           = "iso3_code"
	FieldExporterName       = "exporter_name"
	FieldImporterName       = "importer_name"
	FieldExporterISO3       = "exporter_iso3_code"
	FieldImporterISO3       = "importer_iso3_code"
	FieldProductDescription = "product_description"
	FieldIndicatorCode      = "indicator_code"
	FieldIndicatorName      = "indicator_name"
)
