package tadpoles

import "fmt"

// Portal URLs.
const (
	BaseURL = "https://www.tadpoles.com"
	RootURL = "https://www.tadpoles.com/"
	HomeURL = "https://www.tadpoles.com/parents"
)

// Login flow selectors.
const (
	LoginButton      = "#login-button"
	LoginTile        = ".tp-block-half"
	OtherLoginButton = ".other-login-button"
	EmailInput       = `//input[@type="text"]`
	PasswordInput    = `//input[@type="password"]`
	SubmitButton     = `//button[@type="submit"]`
)

// Timeline selectors. XPath addressing is assumed stable for the duration of
// a run; a portal redesign requires updating these in one place.
const (
	// AllFilterButton switches the timeline filter so daily reports appear
	// among the media entries.
	AllFilterButton = `//*[@id="app"]/div[3]/div[2]/div[1]/div[2]/ul/li[1]`
	// TimelineContainer is the left panel holding the month's entries.
	TimelineContainer = `//div[@class="well left-panel pull-left"]`
	// ReportModalBody holds the rendered daily report after an entry click.
	ReportModalBody = ".modal-overflow-wrapper"
	// ReportModalClose is the printable-modal dismiss icon.
	ReportModalClose = `//*[@id="dr-modal-printable"]/div[1]/i`
	// AppParamsExpr evaluates to the account parameters injected by the
	// portal's own frontend, including the child list.
	AppParamsExpr = "tadpoles.appParams"
)

// monthTileTemplate addresses the Nth month/year tile on the home view.
// span[1] holds the month token, span[2] the year.
const monthTileTemplate = `//*[@id="app"]/div[3]/div[1]/ul/li[%d]/div/div/div/div/span[%d]`

// MonthTileXPath returns the month and year selectors for the 1-indexed tile.
func MonthTileXPath(index int) (month, year string) {
	return fmt.Sprintf(monthTileTemplate, index, 1), fmt.Sprintf(monthTileTemplate, index, 2)
}

// ChildTabXPath returns the selector for the 0-indexed child's timeline tab.
// Child 0 maps to the second list item.
func ChildTabXPath(childIndex int) string {
	return fmt.Sprintf(`//*[@id="app"]/div[2]/div[3]/ul/li[%d]/li/div`, childIndex+2)
}

// EntryXPath addresses the 1-indexed timeline entry, used to click a report
// entry open after classification.
func EntryXPath(index int) string {
	return fmt.Sprintf(`(//div[@class="well left-panel pull-left"]/ul/li/div)[%d]`, index)
}

// Months is the fixed calendar-abbreviation table used by the home view's
// month tiles.
var Months = [12]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// MonthNumber maps a month token to its two-digit numeric string.
func MonthNumber(token string) (string, bool) {
	for i, m := range Months {
		if m == token {
			return fmt.Sprintf("%02d", i+1), true
		}
	}
	return "", false
}
