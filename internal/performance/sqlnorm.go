package performance

import (
	"regexp"
	"strings"

	"github.com/faultline-systems/faultline/internal/jsonmap"
)

// SQLCategory is the breadcrumb category the Rails SDK attaches to query
// instrumentation.
const SQLCategory = "sql.active_record"

// nPlusOneThreshold is the per-transaction repetition count above which a
// pattern is flagged.
const nPlusOneThreshold = 3

// maxExamples caps the verbatim queries kept per pattern.
const maxExamples = 3

// Literal-stripping passes, applied in order. URLs and emails go before the
// generic integer pass so their digits don't get shredded first.
var (
	reURL     = regexp.MustCompile(`https?://[^\s'"]+`)
	reEmail   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reUUID    = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	reIPv4    = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	reString  = regexp.MustCompile(`'(?:[^']|'')*'`)
	reInList  = regexp.MustCompile(`(?i)\bIN\s*\([^)]*\)`)
	reInteger = regexp.MustCompile(`\b\d+\b`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// NormalizeSQL reduces a query to its structural pattern: literal values are
// replaced with placeholders and whitespace is collapsed, so queries that
// differ only in bound values compare equal.
func NormalizeSQL(query string) string {
	q := reURL.ReplaceAllString(query, "?")
	q = reEmail.ReplaceAllString(q, "?")
	q = reUUID.ReplaceAllString(q, "?")
	q = reIPv4.ReplaceAllString(q, "?")
	q = reString.ReplaceAllString(q, "?")
	q = reInList.ReplaceAllString(q, "IN (?)")
	q = reInteger.ReplaceAllString(q, "?")
	q = reSpaces.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// QueryPatternStat aggregates occurrences of one normalized pattern within a
// single transaction.
type QueryPatternStat struct {
	Pattern  string   `json:"pattern"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// NPlusOne reports whether this pattern repeats often enough to look like an
// N+1.
func (s *QueryPatternStat) NPlusOne() bool {
	return s.Count > nPlusOneThreshold
}

// QueryAnalysis is the result of analyzing one transaction's breadcrumbs.
type QueryAnalysis struct {
	TotalQueries     int                          `json:"total_queries"`
	DistinctPatterns int                          `json:"distinct_patterns"`
	Flagged          []string                     `json:"flagged_patterns,omitempty"`
	Patterns         map[string]*QueryPatternStat `json:"patterns"`
}

// AnalyzeQueries groups a transaction's SQL breadcrumbs by normalized
// pattern and flags patterns repeating more than three times as potential
// N+1s.
func AnalyzeQueries(payload map[string]any) *QueryAnalysis {
	analysis := &QueryAnalysis{
		Patterns: make(map[string]*QueryPatternStat),
	}

	for _, crumb := range breadcrumbs(payload) {
		if jsonmap.String(crumb, "category") != SQLCategory {
			continue
		}
		query := jsonmap.String(crumb, "message")
		if query == "" {
			continue
		}

		analysis.TotalQueries++
		pattern := NormalizeSQL(query)

		stat, exists := analysis.Patterns[pattern]
		if !exists {
			stat = &QueryPatternStat{Pattern: pattern}
			analysis.Patterns[pattern] = stat
		}
		stat.Count++
		if len(stat.Examples) < maxExamples {
			stat.Examples = append(stat.Examples, query)
		}
	}

	analysis.DistinctPatterns = len(analysis.Patterns)
	for pattern, stat := range analysis.Patterns {
		if stat.NPlusOne() {
			analysis.Flagged = append(analysis.Flagged, pattern)
		}
	}
	return analysis
}

// breadcrumbs accepts both {"breadcrumbs":{"values":[...]}} and the bare
// list form.
func breadcrumbs(payload map[string]any) []map[string]any {
	if wrapper := jsonmap.Map(payload, "breadcrumbs"); wrapper != nil {
		return jsonmap.Objects(wrapper, "values")
	}
	return jsonmap.Objects(payload, "breadcrumbs")
}
