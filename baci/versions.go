// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ONEcampaign/bblocks-data-importers-sub000/importers"
	"github.com/ONEcampaign/bblocks-data-importers-sub000/internal/logging"
)

// Section headings on the CEPII BACI page. The current release and its HS
// revisions live under "Download"; older releases under "Archives".
const (
	sectionDownload = "Download"
	sectionArchives = "Archives"
)

var (
	// "This is the 202501 version."
	latestVersionRe = regexp.MustCompile(`(?i)This is the\s+([A-Za-z0-9]+)\s+version`)

	// HS revision tokens: HS92, HS96, ..., HS22.
	hsTokenRe = regexp.MustCompile(`\bHS\d{2}\b`)

	// Archive release headers: "202401b version:".
	archiveHeaderRe = regexp.MustCompile(`(\d{6}[a-z]?)\s+version:`)
)

// fetchCatalog scrapes the CEPII version page and returns the available
// releases keyed by release id. Exactly one entry is marked Latest when the
// page is well-formed.
func fetchCatalog(client *http.Client, url string) (map[string]Release, error) {
	logging.Debug().Str("url", url).Msg("Fetching BACI version page")

	resp, err := client.Get(url)
	if err != nil {
		return nil, &importers.ExtractionError{Source: url, Msg: "failed to fetch version page", Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Error closing version page body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &importers.ExtractionError{Source: url, Msg: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &importers.ExtractionError{Source: url, Msg: "failed to read version page body", Err: err}
	}

	return parseCatalog(doc)
}

// parseCatalog extracts the current and archived releases from the version
// page document. The current entry wins if the same id appears in both
// sections.
func parseCatalog(doc *goquery.Document) (map[string]Release, error) {
	downloadText, err := sectionText(doc, sectionDownload)
	if err != nil {
		return nil, err
	}
	archivesText, err := sectionText(doc, sectionArchives)
	if err != nil {
		return nil, err
	}

	latestID, latestHS, err := parseLatestSection(downloadText)
	if err != nil {
		return nil, err
	}

	catalog, err := parseArchiveSection(archivesText)
	if err != nil {
		return nil, err
	}

	catalog[latestID] = Release{HSVersions: latestHS, Latest: true}

	logging.Debug().Int("releases", len(catalog)).Str("latest", latestID).Msg("Parsed BACI version catalog")
	return catalog, nil
}

// sectionText locates the section whose heading div matches the given title
// and returns the text of the containing section.
func sectionText(doc *goquery.Document, title string) (string, error) {
	var text string
	found := false

	doc.Find("div.titre-rubrique").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == title {
			// The parent div holds the section content.
			text = s.Parent().Text()
			found = true
			return false
		}
		return true
	})

	if !found {
		return "", &importers.ParseError{Source: "BACI version page", Msg: fmt.Sprintf("section %q not found", title)}
	}
	return text, nil
}

// parseLatestSection extracts the current release id and its HS revisions
// from the Download section text.
func parseLatestSection(text string) (string, []string, error) {
	m := latestVersionRe.FindStringSubmatch(text)
	if m == nil {
		return "", nil, &importers.ParseError{Source: "BACI version page", Msg: "latest version could not be found in Download section"}
	}
	version := m[1]

	hs := dedupe(hsTokenRe.FindAllString(text, -1))
	if len(hs) == 0 {
		return "", nil, &importers.ParseError{Source: "BACI version page", Msg: "no HS versions found in Download section"}
	}

	return version, hs, nil
}

// parseArchiveSection splits the Archives section on release headers and
// collects the HS revisions listed under each. A release with no listed
// revisions is valid and retained with an empty set.
func parseArchiveSection(text string) (map[string]Release, error) {
	headers := archiveHeaderRe.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return nil, &importers.ParseError{Source: "BACI version page", Msg: "no archived BACI versions found"}
	}

	catalog := make(map[string]Release, len(headers))
	for i, h := range headers {
		version := text[h[2]:h[3]]

		// Block runs from this header to the next one.
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		block := text[h[1]:end]

		catalog[version] = Release{HSVersions: dedupe(hsTokenRe.FindAllString(block, -1))}
	}

	return catalog, nil
}

// dedupe drops repeated tokens, preserving first-seen order. The page lists
// each HS revision once per download link, so repeats are common.
func dedupe(tokens []string) []string {
	if len(tokens) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
