package services

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/parkwatch/parking-backend/models"
)

// Hidden session tokens the portal regenerates on every response. They must
// be carried forward on every submission or the portal rejects the postback.
const (
	fieldViewState          = "__VIEWSTATE"
	fieldEventValidation    = "__EVENTVALIDATION"
	fieldViewStateGenerator = "__VIEWSTATEGENERATOR"
)

// Postback control fields identifying the simulated UI action.
const (
	fieldEventTarget   = "__EVENTTARGET"
	fieldEventArgument = "__EVENTARGUMENT"
)

// CollectFormFields gathers every named form control on the page into a
// field set, mirroring browser default-submission behavior: checkboxes and
// radios contribute a value only when checked, selects contribute the
// selected option or fall back to the first one, textareas contribute their
// text. Submitting without a value the portal expects can invalidate the
// whole postback, so the defaults matter.
func CollectFormFields(doc *goquery.Document) models.FormFieldSet {
	fields := make(models.FormFieldSet)

	doc.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		inputType := strings.ToLower(input.AttrOr("type", ""))
		switch inputType {
		case "checkbox", "radio":
			if _, checked := input.Attr("checked"); checked {
				fields[name] = input.AttrOr("value", "on")
			}
		default:
			fields[name] = input.AttrOr("value", "")
		}
	})

	doc.Find("select[name]").Each(func(_ int, sel *goquery.Selection) {
		name := sel.AttrOr("name", "")
		option := sel.Find("option[selected]").First()
		if option.Length() == 0 {
			option = sel.Find("option").First()
		}
		if option.Length() == 0 {
			return
		}
		if value, ok := option.Attr("value"); ok {
			fields[name] = value
		} else {
			fields[name] = strings.TrimSpace(option.Text())
		}
	})

	doc.Find("textarea[name]").Each(func(_ int, area *goquery.Selection) {
		fields[area.AttrOr("name", "")] = area.Text()
	})

	return fields
}

// ExtractHiddenFields grabs the three ASP.NET state tokens by exact element
// id, independently of the generic field collection so they are never
// silently dropped. Missing tokens come back as empty strings: the first
// page load legitimately has none, and the portal's own error response is
// the authority on whether a submission was malformed.
func ExtractHiddenFields(doc *goquery.Document) models.FormFieldSet {
	value := func(id string) string {
		return doc.Find("input#" + id).AttrOr("value", "")
	}
	return models.FormFieldSet{
		fieldViewState:          value(fieldViewState),
		fieldEventValidation:    value(fieldEventValidation),
		fieldViewStateGenerator: value(fieldViewStateGenerator),
	}
}

// BuildPostbackFields assembles the full submission for a simulated UI
// action against the current page: all form controls, the hidden tokens
// overlaid on top, and the event target/argument pair.
func BuildPostbackFields(doc *goquery.Document, eventTarget, eventArgument string) models.FormFieldSet {
	fields := CollectFormFields(doc)
	for name, value := range ExtractHiddenFields(doc) {
		fields[name] = value
	}
	fields[fieldEventTarget] = eventTarget
	fields[fieldEventArgument] = eventArgument
	return fields
}
