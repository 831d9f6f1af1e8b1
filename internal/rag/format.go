package rag

import (
	"fmt"
	"strings"
)

// resultSeparator separates formatted chunks.
const resultSeparator = "\n\n---\n\n"

// formatResults renders each chunk followed by its attribution line.
func formatResults(results []SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, r.ChunkText+attribution(r))
	}
	return strings.Join(blocks, resultSeparator)
}

// attribution returns "\n[Category: c | Section: s | Source: src]" with
// only the parts that are present, or "" when none are.
func attribution(r SearchResult) string {
	var parts []string
	if r.Category != "" {
		parts = append(parts, "Category: "+r.Category)
	}
	if r.SectionTitle != "" {
		parts = append(parts, "Section: "+r.SectionTitle)
	}
	if r.Source != "" {
		parts = append(parts, "Source: "+r.Source)
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("\n[%s]", strings.Join(parts, " | "))
}
