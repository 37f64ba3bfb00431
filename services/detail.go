package services

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/parkwatch/parking-backend/models"
	"github.com/sirupsen/logrus"
)

// Portal control names for the search form.
const (
	controlTagInput      = "ctl00$ContentPlaceHolder1$txtTag"
	controlCitationInput = "ctl00$ContentPlaceHolder1$txtcitn"
	controlTabSelector   = "ctl00$ContentPlaceHolder1$hfTab"
	controlStateDropdown = "ctl00$ContentPlaceHolder1$DropDownState"
)

// Event targets for the two search buttons the portal exposes.
const (
	eventTargetTagSearch      = "ctl00$ContentPlaceHolder1$btnSubmit_TagSearch"
	eventTargetCitationSearch = "ctl00$ContentPlaceHolder1$btnSubmit_CitSearch"
)

const (
	tabModeTag       = "tagplate"
	tabModeCitation  = "citation"
	defaultStateCode = "FL"
)

// detailFieldIDs maps the detail page's label element ids to semantic field
// names in the output.
var detailFieldIDs = map[string]string{
	"lb_Citation": "citation_number",
	"lb_Tag":      "tag_number",
	"lb_State":    "state",

	"lb_IssueDateTime":  "issue_date_time",
	"lb_amountdue":      "amount_due_now",
	"lb_duedate":        "due_date",
	"lb_amountdueafter": "amount_due_after_due_date",
	"lb_Status":         "status",

	"lb_Violation":    "violation_type",
	"lb_location":     "location",
	"lb_municipality": "municipality",

	"lb_carmake":  "vehicle_make",
	"lb_carstyle": "vehicle_style",
	"lb_color":    "vehicle_color",
}

// detailFallbackTableSelector matches the bordered two-column info tables
// the detail page renders for anything without a dedicated label element.
const detailFallbackTableSelector = "table.table.table-bordered.mb-0"

// ParseCitationDetails extracts the known labeled fields from a citation
// detail page, then sweeps the fallback tables for any remaining key/value
// pairs. Known-id fields always take precedence; the fallback scan only
// adds keys that are not already present.
func ParseCitationDetails(doc *goquery.Document) models.CitationDetail {
	detail := models.NewCitationDetail()

	for id, fieldName := range detailFieldIDs {
		element := doc.Find("span#" + id)
		if element.Length() > 0 {
			detail.Fields[fieldName] = strings.TrimSpace(element.First().Text())
		}
	}

	doc.Find(detailFallbackTableSelector).Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			label := strings.TrimSpace(cells.Eq(0).Text())
			value := strings.TrimSpace(cells.Eq(1).Text())
			if label == "" || value == "" {
				return
			}
			key := normalizeDetailKey(label)
			if _, known := detail.Fields[key]; known {
				return
			}
			if _, seen := detail.Extra[key]; seen {
				return
			}
			detail.Extra[key] = value
		})
	})

	return detail
}

func normalizeDetailKey(label string) string {
	key := strings.ToLower(label)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, "&", "and")
	return key
}

// DetailFetcher retrieves the detail page for a single citation by
// re-submitting the search form in citation mode.
type DetailFetcher struct {
	Executor *PostbackExecutor
}

func NewDetailFetcher(executor *PostbackExecutor) *DetailFetcher {
	return &DetailFetcher{Executor: executor}
}

// FetchCitationDetails submits a citation-mode search and parses the
// response. When a baseline field set from the most recent tag search is
// supplied it is cloned and reused, saving a redundant landing-page fetch;
// otherwise the landing page is fetched and the field set rebuilt.
func (f *DetailFetcher) FetchCitationDetails(ctx context.Context, citationNumber string, baseFields models.FormFieldSet) (models.CitationDetail, error) {
	var fields models.FormFieldSet
	if baseFields != nil {
		fields = baseFields.Clone()
		fields[controlTagInput] = ""
	} else {
		page, err := f.Executor.Session.GetPage(ctx)
		if err != nil {
			return models.CitationDetail{}, err
		}
		fields = CollectFormFields(page)
		for name, value := range ExtractHiddenFields(page) {
			fields[name] = value
		}
		if _, ok := fields[controlTagInput]; ok {
			fields[controlTagInput] = ""
		}
	}

	fields[fieldEventTarget] = eventTargetCitationSearch
	fields[fieldEventArgument] = ""
	fields[controlCitationInput] = citationNumber
	if _, ok := fields[controlTabSelector]; ok {
		fields[controlTabSelector] = tabModeCitation
	}
	if _, ok := fields[controlStateDropdown]; ok {
		fields[controlStateDropdown] = defaultStateCode
	}

	page, err := f.Executor.SubmitFieldSet(ctx, fields)
	if err != nil {
		return models.CitationDetail{}, err
	}
	return ParseCitationDetails(page), nil
}

// FetchRecord wraps FetchCitationDetails with per-citation error
// containment: whatever goes wrong, the summary fields survive in a
// degraded record and the batch is never aborted.
func (f *DetailFetcher) FetchRecord(ctx context.Context, row models.SummaryRow, baseFields models.FormFieldSet) models.CitationRecord {
	detail, err := f.FetchCitationDetails(ctx, row.Citation, baseFields)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "DetailFetcher",
			"citation":  row.Citation,
		}).WithError(err).Warn("Citation detail fetch failed, keeping summary fields")
		return models.NewDegradedCitationRecord(row, err)
	}
	return models.NewCitationRecord(row, detail)
}
