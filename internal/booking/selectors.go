package booking

import (
	"strings"
)

const (
	selSearchAffordance     = "button[aria-describedby='searchInputDescriptionId']"
	xpathSearchDestinations = "//button[contains(string(), 'Search destinations')]"
	selDestinationInput     = "input[data-testid='search_query_input']"
	xpathWhenPanel          = "//div[@id='accordion-body-/homes-when']"
	selDatesNext            = "div[data-testid='dates-footer-primary-btn']"
	xpathWhoPanel           = "//div[@id='accordion-body-/homes-who']"
	selSearchSubmit         = "*[data-testid='explore-footer-primary-btn']"

	selShowFilters     = "button[aria-label='Show filters']"
	xpathFiltersHeader = "//header[contains(string(), 'Filters')]"
	selPriceMin        = "input#price_filter_min"
	selPriceMax        = "input#price_filter_max"
	selInstantBook     = "button#ib"
	selFiltersSubmit   = "footer > a"

	xpathTopResult      = "//div[@itemprop='itemListElement']/descendant::a"
	selTranslationClose = "div[aria-label='Translation on'] button[aria-label='Close']"
	selBookButton       = "button[data-testid='homes-pdp-cta-btn']"

	searchResponsePart   = "/StaysSearch/"
	checkoutResponsePart = "stayCheckout"
)

const (
	scriptScrollCenter      = `el => el.scrollIntoView({ block: "center" })`
	scriptScrollAboveFooter = `el => { el.scrollIntoView(); window.scrollBy({ top: -200 }); }`
	scriptClearInput        = `el => { el.focus(); el.select(); document.execCommand('selectAll'); document.execCommand('delete'); }`
	scriptTextEquals        = `([selector, want]) => { const el = document.querySelector(selector); return !!el && el.textContent.trim() === want; }`
)

// destinationOptionXPath matches the first suggestion whose visible text contains place.
func destinationOptionXPath(place string) string {
	return "//div[contains(@data-testid, 'option-') and contains(string(), " + xpathLiteral(place) + ")]"
}

func calendarDaySelector(date string) string {
	return "div[data-testid=" + cssString("calendar-day-"+date) + "]"
}

func stepperIncreaseSelector(category string) string {
	return "button[data-testid='stepper-" + category + "-increase-button']"
}

func stepperValueSelector(category string) string {
	return "span[data-testid='stepper-" + category + "-value']"
}

func placeTypeSelector(place PlaceType) string {
	return "button[aria-describedby=" + cssString("room-filter-description-"+string(place)) + "]"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))

	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}

	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)

	return "'" + r.Replace(s) + "'"
}
