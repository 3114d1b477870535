package app

import "strings"

// parseCSVTrimList keeps the first spelling of each entry, compared
// case-insensitively.
func parseCSVTrimList(input string) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	result := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, value)
	}
	return result
}

func truncateSingleLine(input string, maxLen int) string {
	single := strings.Join(strings.Fields(strings.TrimSpace(input)), " ")
	if maxLen < 1 || len(single) <= maxLen {
		return single
	}
	return strings.TrimSpace(single[:maxLen]) + "..."
}

func compactLineBreaks(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen < 1 || len(trimmed) <= maxLen {
		return trimmed
	}
	return strings.TrimSpace(trimmed[:maxLen]) + "..."
}
