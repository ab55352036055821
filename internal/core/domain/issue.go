package domain

type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "warning"
	SeverityFatal   IssueSeverity = "fatal"
)

type IssueCode string

const (
	IssueInvalidIdentifier   IssueCode = "invalid_identifier"
	IssueInvalidAmount       IssueCode = "invalid_amount"
	IssueMissingRequired     IssueCode = "missing_required_field"
	IssueMissingFilingStatus IssueCode = "missing_filing_status"
	IssueUnsupportedDocument IssueCode = "unsupported_document_type"
)

// ValidationIssue is one detected problem on one extracted record. Fatal
// issues exclude the record from aggregation; warnings pass through for
// caller visibility.
type ValidationIssue struct {
	Field    string
	Code     IssueCode
	Severity IssueSeverity
	Message  string
}

func HasFatal(issues []ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityFatal {
			return true
		}
	}
	return false
}
