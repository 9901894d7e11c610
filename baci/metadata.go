// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package baci

import "strings"

// variableListHeader marks the Readme block enumerating column codes. It is
// a column legend, not release metadata, and is skipped entirely.
const variableListHeader = "List of Variables:"

// parseReadme extracts key/value metadata from a release's Readme.txt
// content. Blocks are delimited by blank lines; the first "key: value" line
// of a block names the entry and any following lines continue the value,
// joined with single spaces. Blocks without a colon on their first line are
// ignored.
func parseReadme(content string) map[string]string {
	// The archives mix line-ending conventions; normalize before splitting
	// on blank lines.
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	metadata := make(map[string]string)

	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, variableListHeader) {
			continue
		}

		lines := strings.Split(block, "\n")
		key, first, ok := strings.Cut(lines[0], ":")
		if !ok {
			continue
		}

		parts := make([]string, 0, len(lines))
		for _, line := range append([]string{first}, lines[1:]...) {
			parts = append(parts, strings.TrimSpace(line))
		}
		metadata[strings.TrimSpace(key)] = strings.TrimSpace(strings.Join(parts, " "))
	}

	return metadata
}
