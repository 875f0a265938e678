package output

import (
	"fmt"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/runner"
)

// defaultSuite names results whose case has no source file.
const defaultSuite = "jsonprobe"

func sourceOf(r *runner.CaseResult) string {
	if r.Case != nil && r.Case.Source != "" {
		return r.Case.Source
	}
	return defaultSuite
}

// groupBySource splits results by definition file, keeping first-seen order.
func groupBySource(results []*runner.CaseResult) ([]string, map[string][]*runner.CaseResult) {
	var order []string
	groups := make(map[string][]*runner.CaseResult)
	for _, r := range results {
		src := sourceOf(r)
		if _, seen := groups[src]; !seen {
			order = append(order, src)
		}
		groups[src] = append(groups[src], r)
	}
	return order, groups
}

// formatValue formats a value for display, truncating or summarizing large values.
// maxLen counts runes, so multi-byte characters are never split.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case string:
		v = fmt.Sprintf("%q", val)
	}
	str := fmt.Sprintf("%v", v)
	if utf8.RuneCountInString(str) > maxLen {
		return string([]rune(str)[:maxLen]) + "..."
	}
	return str
}
