package services

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/parkwatch/parking-backend/models"
)

// requiredResultHeaders identifies the citations table. The portal exposes
// no stable id for it, but these header texts are stable, so the table is
// located by structural signature rather than by position.
var requiredResultHeaders = []string{"citation", "date issued", "status", "amount due"}

// FindResultsTable scans the page's tables for one whose header text is a
// superset of the required headers (case-insensitive) and returns the first
// match. A missing table is the portal's "no results" outcome, not an error.
func FindResultsTable(doc *goquery.Document) (*goquery.Selection, bool) {
	var found *goquery.Selection

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		headers := make(map[string]bool)
		table.Find("th").Each(func(_ int, th *goquery.Selection) {
			headers[strings.ToLower(strings.TrimSpace(th.Text()))] = true
		})
		if len(headers) == 0 {
			return true
		}
		for _, required := range requiredResultHeaders {
			if !headers[required] {
				return true
			}
		}
		found = table
		return false
	})

	return found, found != nil
}

// ParseSummaryRows extracts one SummaryRow per data row of the results
// table. Column indexes are derived from the header row itself, since
// column order is not guaranteed stable across site revisions. Rows with
// fewer cells than required or an empty citation id are spacer rows and
// are skipped. A header-only table yields an empty slice, which is the
// valid "no citations" outcome.
func ParseSummaryRows(table *goquery.Selection) []models.SummaryRow {
	rows := make([]models.SummaryRow, 0)

	trs := table.Find("tr")
	if trs.Length() < 2 {
		return rows
	}

	headerIndex := make(map[string]int)
	trs.First().Find("th").Each(func(i int, th *goquery.Selection) {
		headerIndex[strings.ToLower(strings.TrimSpace(th.Text()))] = i
	})

	idxMoreInfo := columnIndex(headerIndex, "more info", 0)
	idxCitation := columnIndex(headerIndex, "citation", 1)
	idxDate := columnIndex(headerIndex, "date issued", 2)
	idxStatus := columnIndex(headerIndex, "status", 3)
	idxAmount := columnIndex(headerIndex, "amount due", 4)

	minCells := idxMoreInfo
	for _, idx := range []int{idxCitation, idxDate, idxStatus, idxAmount} {
		if idx > minCells {
			minCells = idx
		}
	}
	minCells++

	trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < minCells {
			return
		}

		citation := strings.TrimSpace(cells.Eq(idxCitation).Text())
		if citation == "" {
			return
		}

		rows = append(rows, models.SummaryRow{
			Citation:     citation,
			DateIssued:   strings.TrimSpace(cells.Eq(idxDate).Text()),
			Status:       strings.TrimSpace(cells.Eq(idxStatus).Text()),
			AmountDue:    strings.TrimSpace(cells.Eq(idxAmount).Text()),
			ExpandTarget: extractExpandTarget(cells.Eq(idxMoreInfo)),
		})
	})

	return rows
}

func columnIndex(headerIndex map[string]int, name string, fallback int) int {
	if idx, ok := headerIndex[name]; ok {
		return idx
	}
	return fallback
}

// extractExpandTarget pulls the postback target out of the row's expand
// link. The href embeds the two-argument __doPostBack('target','argument')
// calling convention; splitting on the quote delimiter and taking the first
// argument recovers the target.
func extractExpandTarget(cell *goquery.Selection) string {
	href := cell.Find("a[href]").First().AttrOr("href", "")
	if !strings.Contains(href, "__doPostBack") {
		return ""
	}
	parts := strings.Split(href, "'")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
