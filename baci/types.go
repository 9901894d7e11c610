// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

// TradeRecord is one bilateral trade flow: (year, exporter, importer,
// product, value, quantity). The source does not guarantee uniqueness of
// (year, exporter, importer, product) and the importer passes duplicates
// through unchanged.
//
// Field order is the stable column order of returned tables: core trade
// columns first, label columns after. Label fields are nil unless the
// corresponding labels were requested; a requested label is also nil when
// the code does not resolve against the release's reference tables.
type TradeRecord struct {
	Year         int16
	ExporterCode int32
	ImporterCode int32
	// ProductCode stays string-typed: codes carry leading zeros and some
	// HS revisions use alphanumeric forms.
	ProductCode string
	// Value is the trade value in thousands of USD.
	Value float64
	// Quantity is in metric tons; nil where the source reports none.
	Quantity *float64

	ExporterName       *string
	ImporterName       *string
	ExporterISO3       *string
	ImporterISO3       *string
	ProductDescription *string
}

// Country is one entry of a release's country reference table.
type Country struct {
	Code int32
	Name string
	ISO2 string
	ISO3 string
}

// ProductEntry is one entry of a release's product reference table.
type ProductEntry struct {
	Code        string
	Description string
}

// Release describes one BACI release as discovered from the CEPII version
// page: the HS revisions it was published under and whether it is the
// current release. At most one release in a catalog is marked Latest.
type Release struct {
	HSVersions []string
	Latest     bool
}
