package ownership

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// isNumericPlaceholder reports whether the raw cell stands for "no value".
func isNumericPlaceholder(s string) bool {
	switch s {
	case "", "-", "--", "nan", "NaN":
		return true
	}
	return false
}

// normalizeDecimalString rewrites a locale-ambiguous numeric string into
// the canonical dot-decimal form understood by strconv.
// It handles both US format (1,234.56) and European format (1.234,56):
// when both separators appear, the one occurring last is the decimal mark.
func normalizeDecimalString(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "%", "")
	cleaned = strings.TrimSpace(cleaned)

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			// European format: 1.234,56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			// US format: 1,234.56
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		// A lone comma with 1-2 trailing digits is a decimal mark
		// (e.g. "6,39"); anything else is a thousands separator.
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}
	// A lone dot is already canonical.

	return cleaned
}

// CleanNumeric converts a textual number from the export into a float64.
// Placeholder and unparseable inputs yield 0: the pipeline recovers from
// field-level parse failures with a zero sentinel and never aborts a row.
// Percentages are clamped to [0,100].
func CleanNumeric(value string, isPercentage bool) float64 {
	v, _ := CleanNumericChecked(value, isPercentage)
	return v
}

// CleanNumericChecked is CleanNumeric plus a flag reporting whether a
// percentage value was capped, so callers can surface a per-row warning.
func CleanNumericChecked(value string, isPercentage bool) (float64, bool) {
	trimmed := strings.TrimSpace(value)
	if isNumericPlaceholder(trimmed) {
		return 0, false
	}

	parsed, err := strconv.ParseFloat(normalizeDecimalString(trimmed), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}

	if isPercentage {
		// No holder or portfolio can own more than 100% of a company;
		// leveraged positions are deliberately truncated.
		if parsed < 0 {
			return 0, true
		}
		if parsed > 100 {
			return 100, true
		}
	}
	return parsed, false
}

// CleanInt parses a textual number and truncates it to an integer, with
// the same placeholder and failure semantics as CleanNumeric.
func CleanInt(value string) int64 {
	return int64(CleanNumeric(value, false))
}

// ParseFilingDate parses the export's DD.MM.YYYY filing date and returns
// it in YYYY-MM-DD form. The second return is false when the field is
// absent or malformed.
func ParseFilingDate(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if isNumericPlaceholder(trimmed) {
		return "", false
	}
	t, err := time.Parse("02.01.2006", trimmed)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
