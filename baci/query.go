// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"fmt"
	"strings"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/importers"
)

// Filters are built from typed constructors rather than loosely-shaped
// values. Each filter compiles to a parameterized SQL clause; clauses from
// the year and product filters combine with AND. A filter that matches
// nothing physically present yields an empty result, never an error and
// never a fall-back to the unfiltered dataset.

type filterKind int

const (
	filterSingle filterKind = iota
	filterSet
	filterRange
)

// YearFilter restricts a query to one year, a set of years, or an inclusive
// year range.
type YearFilter struct {
	kind   filterKind
	set    []int
	lo, hi int
	err    error
}

// Year selects a single year.
func Year(y int) *YearFilter {
	return &YearFilter{kind: filterSingle, set: []int{y}}
}

// Years selects any of the given years.
func Years(ys ...int) *YearFilter {
	f := &YearFilter{kind: filterSet, set: ys}
	if len(ys) == 0 {
		f.err = importers.NewInvalidRequestError("years filter requires at least one year")
	}
	return f
}

// YearRange selects every year from start to end inclusive.
func YearRange(start, end int) *YearFilter {
	f := &YearFilter{kind: filterRange, lo: start, hi: end}
	if start > end {
		f.err = importers.NewInvalidRequestError("invalid year range: start %d is after end %d", start, end)
	}
	return f
}

// clause compiles the filter to a parameterized SQL condition.
func (f *YearFilter) clause() (string, []any) {
	switch f.kind {
	case filterSingle:
		return "year = ?", []any{f.set[0]}
	case filterSet:
		placeholders := make([]string, len(f.set))
		args := make([]any, len(f.set))
		for i, y := range f.set {
			placeholders[i] = "?"
			args[i] = y
		}
		return fmt.Sprintf("year IN (%s)", strings.Join(placeholders, ", ")), args
	default:
		return "year BETWEEN ? AND ?", []any{f.lo, f.hi}
	}
}

// partitionYears returns the subset of available partition years the filter
// can match, so reads touch only those partitions.
func (f *YearFilter) partitionYears(available []int) []int {
	selected := make([]int, 0, len(available))
	for _, y := range available {
		if f.matches(y) {
			selected = append(selected, y)
		}
	}
	return selected
}

func (f *YearFilter) matches(y int) bool {
	switch f.kind {
	case filterRange:
		return y >= f.lo && y <= f.hi
	default:
		for _, v := range f.set {
			if v == y {
				return true
			}
		}
		return false
	}
}

// ProductFilter restricts a query to one product code, a set of codes, or
// an inclusive code range. Codes are strings: leading zeros are significant
// and some HS revisions use alphanumeric forms. Ranges compare
// lexicographically, which matches numeric order for the fixed-width
// 6-digit HS codes.
type ProductFilter struct {
	kind   filterKind
	set    []string
	lo, hi string
	err    error
}

// Product selects a single product code.
func Product(code string) *ProductFilter {
	f := &ProductFilter{kind: filterSingle, set: []string{code}}
	if code == "" {
		f.err = importers.NewInvalidRequestError("product filter requires a non-empty code")
	}
	return f
}

// Products selects any of the given product codes.
func Products(codes ...string) *ProductFilter {
	f := &ProductFilter{kind: filterSet, set: codes}
	if len(codes) == 0 {
		f.err = importers.NewInvalidRequestError("products filter requires at least one code")
	}
	for _, c := range codes {
		if c == "" {
			f.err = importers.NewInvalidRequestError("products filter contains an empty code")
			break
		}
	}
	return f
}

// ProductRange selects every code from start to end inclusive.
func ProductRange(start, end string) *ProductFilter {
	f := &ProductFilter{kind: filterRange, lo: start, hi: end}
	if start == "" || end == "" {
		f.err = importers.NewInvalidRequestError("product range requires non-empty start and end codes")
	} else if start > end {
		f.err = importers.NewInvalidRequestError("invalid product range: start %q is after end %q", start, end)
	}
	return f
}

// clause compiles the filter to a parameterized SQL condition.
func (f *ProductFilter) clause() (string, []any) {
	switch f.kind {
	case filterSingle:
		return "product_code = ?", []any{f.set[0]}
	case filterSet:
		placeholders := make([]string, len(f.set))
		args := make([]any, len(f.set))
		for i, c := range f.set {
			placeholders[i] = "?"
			args[i] = c
		}
		return fmt.Sprintf("product_code IN (%s)", strings.Join(placeholders, ", ")), args
	default:
		return "product_code BETWEEN ? AND ?", []any{f.lo, f.hi}
	}
}

// buildWhere combines the supplied filters into a single WHERE clause with
// a "1=1" base for safe AND concatenation. Absent (nil) filters impose no
// restriction. An invalid filter surfaces here as InvalidRequestError.
func buildWhere(years *YearFilter, products *ProductFilter) (string, []any, error) {
	conditions := []string{"1=1"}
	var args []any

	if years != nil {
		if years.err != nil {
			return "", nil, years.err
		}
		clause, clauseArgs := years.clause()
		conditions = append(conditions, clause)
		args = append(args, clauseArgs...)
	}

	if products != nil {
		if products.err != nil {
			return "", nil, products.err
		}
		clause, clauseArgs := products.clause()
		conditions = append(conditions, clause)
		args = append(args, clauseArgs...)
	}

	return strings.Join(conditions, " AND "), args, nil
}
