package models

import "fmt"

// IssueKind tags a validation failure so correction rules can dispatch on it
// without re-matching message substrings.
type IssueKind string

const (
	IssueExecutionError IssueKind = "execution_error"
	IssueTooFewResults  IssueKind = "too_few_results"
	IssueTooManyResults IssueKind = "too_many_results"
	IssueCountyFilter   IssueKind = "county_filter"
	IssuePriceFilter    IssueKind = "price_filter"
	IssueAggregation    IssueKind = "aggregation"
)

// Issue is one validation finding.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (i Issue) String() string {
	switch i.Kind {
	case IssueExecutionError:
		return fmt.Sprintf("query execution error: %s", i.Detail)
	case IssueTooFewResults:
		return fmt.Sprintf("too few results: %s", i.Detail)
	case IssueTooManyResults:
		return fmt.Sprintf("too many results: %s", i.Detail)
	case IssueCountyFilter:
		return fmt.Sprintf("county filter appears incorrect: %s", i.Detail)
	case IssuePriceFilter:
		return "price range filter appears incorrect"
	case IssueAggregation:
		return "aggregation query validation failed"
	default:
		return i.Detail
	}
}

// ValidationVerdict is the validator's pass/fail outcome with findings.
type ValidationVerdict struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// IssueStrings renders all findings as human-readable lines.
func (v ValidationVerdict) IssueStrings() []string {
	out := make([]string, 0, len(v.Issues))
	for _, issue := range v.Issues {
		out = append(out, issue.String())
	}
	return out
}

// HasKind reports whether any finding carries the given tag.
func (v ValidationVerdict) HasKind(kind IssueKind) bool {
	for _, issue := range v.Issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}
