package models

import (
	"encoding/json"
	"strings"
)

// StatusOpen is the exact status literal the portal uses for unpaid citations.
const StatusOpen = "OPEN"

// PaymentNotRequired is the amount reported for citations that need no payment.
const PaymentNotRequired = "$0.00"

// DueDateNotAvailable marks records whose detail page yielded no due date.
const DueDateNotAvailable = "Not available"

// FormFieldSet maps form control names to the values that would be submitted
// for them. It is rebuilt from every portal response because the hidden
// session tokens change on each round trip.
type FormFieldSet map[string]string

// Clone returns an independent copy so concurrent detail fetches can mutate
// their own field sets without racing on the shared baseline.
func (f FormFieldSet) Clone() FormFieldSet {
	clone := make(FormFieldSet, len(f))
	for name, value := range f {
		clone[name] = value
	}
	return clone
}

// SummaryRow holds one citation row from the results table.
type SummaryRow struct {
	Citation     string
	DateIssued   string
	Status       string
	AmountDue    string
	ExpandTarget string // postback target of the row's expand link, if any
}

// NeedsPayment reports whether the citation is still open per the portal.
func (r SummaryRow) NeedsPayment() bool {
	return r.Status == StatusOpen
}

// CitationDetail holds the fields extracted from a citation's detail page.
// Fields carries values matched by known element ids; Extra carries anything
// recovered by the fallback table scan. A key that is absent means the page
// did not expose that attribute, which is distinct from an empty value.
type CitationDetail struct {
	Fields map[string]string
	Extra  map[string]string
}

// NewCitationDetail returns an empty detail with both maps initialized.
func NewCitationDetail() CitationDetail {
	return CitationDetail{
		Fields: make(map[string]string),
		Extra:  make(map[string]string),
	}
}

// IsEmpty reports whether nothing was extracted from the detail page.
func (d CitationDetail) IsEmpty() bool {
	return len(d.Fields) == 0 && len(d.Extra) == 0
}

// CitationRecord merges a summary row with its detail page. Records from a
// failed detail fetch keep the summary fields and carry the error text.
type CitationRecord struct {
	Summary         SummaryRow
	Detail          CitationDetail
	NeedsPayment    bool
	PaymentRequired string
	Error           string
}

// NewCitationRecord builds the merged record for a successful detail fetch.
func NewCitationRecord(row SummaryRow, detail CitationDetail) CitationRecord {
	return CitationRecord{
		Summary:         row,
		Detail:          detail,
		NeedsPayment:    row.NeedsPayment(),
		PaymentRequired: paymentRequired(row),
	}
}

// NewDegradedCitationRecord builds the contained-failure record: summary
// fields only, payment flags derived from the summary status, and the cause
// attached so the caller can surface it without losing the citation.
func NewDegradedCitationRecord(row SummaryRow, cause error) CitationRecord {
	return CitationRecord{
		Summary:         row,
		Detail:          NewCitationDetail(),
		NeedsPayment:    row.NeedsPayment(),
		PaymentRequired: paymentRequired(row),
		Error:           cause.Error(),
	}
}

func paymentRequired(row SummaryRow) string {
	if row.NeedsPayment() {
		return row.AmountDue
	}
	return PaymentNotRequired
}

// MarshalJSON flattens the record the way the API emits it: summary columns
// under their portal header names, payment flags, then every detail field at
// the top level. Detail keys never shadow the summary columns.
func (r CitationRecord) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"Citation":         r.Summary.Citation,
		"Date Issued":      r.Summary.DateIssued,
		"Status":           r.Summary.Status,
		"Amount Due":       r.Summary.AmountDue,
		"needs_payment":    r.NeedsPayment,
		"payment_required": r.PaymentRequired,
	}

	for key, value := range r.Detail.Fields {
		out[key] = value
	}
	for key, value := range r.Detail.Extra {
		if _, taken := out[key]; !taken {
			out[key] = value
		}
	}

	if r.Error != "" {
		out["due_date"] = DueDateNotAvailable
		out["due_date_estimated"] = false
		out["error"] = r.Error
	} else if !r.Detail.IsEmpty() {
		if _, ok := out["due_date"]; !ok {
			out["due_date"] = DueDateNotAvailable
			out["due_date_estimated"] = false
		}
	}

	return json.Marshal(out)
}

// SearchSummary aggregates the counts reported for one tag search.
// TotalDue is the portal's own total, taken verbatim from the results page;
// it is nil when the portal did not report one.
type SearchSummary struct {
	TotalCitations int     `json:"total_citations"`
	TotalPaid      int     `json:"total_paid"`
	TotalOpen      int     `json:"total_open"`
	TotalDue       *string `json:"total_due"`
}

// SearchResult is the top-level payload for one tag search. Message is set
// only when the portal produced no results table at all.
type SearchResult struct {
	TagNumber     string           `json:"tag_number"`
	Summary       SearchSummary    `json:"summary"`
	PaidCitations []CitationRecord `json:"paid_citations"`
	OpenCitations []CitationRecord `json:"open_citations"`
	Message       string           `json:"message,omitempty"`
}

// NewEmptySearchResult returns a zero-count result with non-nil citation
// slices so the API always emits arrays, never null.
func NewEmptySearchResult(tagNumber string, totalDue *string) *SearchResult {
	return &SearchResult{
		TagNumber: tagNumber,
		Summary: SearchSummary{
			TotalDue: totalDue,
		},
		PaidCitations: make([]CitationRecord, 0),
		OpenCitations: make([]CitationRecord, 0),
	}
}

// NormalizeTag canonicalizes a vehicle tag the way the portal expects it.
func NormalizeTag(tagNumber string) string {
	return strings.ToUpper(strings.TrimSpace(tagNumber))
}
