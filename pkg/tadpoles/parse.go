package tadpoles

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tadcatch/pkg/errors"
)

// styleURLRe extracts the background-image URL from an entry's style
// attribute: background-image: url("...").
var styleURLRe = regexp.MustCompile(`\("([^"]+)`)

// styleURL returns the background-image URL of an entry, or "" if none.
func styleURL(style string) string {
	m := styleURLRe.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	return m[1]
}

// Classify determines what a raw entry is. The URL check is evaluated first
// and is authoritative: an entry carrying any background-image URL is never a
// report, even if its text mentions one.
func Classify(e Entry) Kind {
	url := styleURL(e.Style)
	if url != "" {
		if strings.Contains(url, "thumbnail") {
			return KindMedia
		}
		return KindUnrecognized
	}
	if strings.Contains(e.Text, "report") || strings.Contains(e.Text, "Report") {
		return KindReport
	}
	return KindUnrecognized
}

// NewMediaItem derives a MediaItem from an entry classified as media.
func NewMediaItem(e Entry) (MediaItem, error) {
	url := styleURL(e.Style)
	if url == "" {
		return MediaItem{}, errors.New(errors.ErrorTypeParsing, "entry %d has no background-image url", e.Index)
	}

	// Strip the thumbnail marker so the fetch returns the original asset.
	url = strings.ReplaceAll(url, "&thumbnail=true", "")
	url = strings.ReplaceAll(url, "thumbnail=true", "")
	url = BaseURL + url

	_, key, found := strings.Cut(url, "key=")
	if !found {
		return MediaItem{}, errors.New(errors.ErrorTypeParsing, "media url has no key parameter: %s", url)
	}

	id, err := truncatedID(e.ID)
	if err != nil {
		return MediaItem{}, err
	}

	return MediaItem{URL: url, ID: id, Key: key}, nil
}

// truncatedID derives the stable identifier from an entry's id attribute:
// the second dash-separated token, shortened to its trailing half to stay
// under filesystem name limits.
func truncatedID(attr string) (string, error) {
	parts := strings.Split(attr, "-")
	if len(parts) < 2 || parts[1] == "" {
		return "", errors.New(errors.ErrorTypeParsing, "unexpected entry id format: %q", attr)
	}
	token := parts[1]
	return token[len(token)/2:], nil
}

// NewReportMarker derives a ReportMarker from an entry classified as a
// report. The day-of-month is the second field of the slash-separated date on
// the text's second line.
func NewReportMarker(e Entry) (ReportMarker, error) {
	lines := strings.Split(e.Text, "\n")
	if len(lines) < 2 {
		return ReportMarker{}, errors.New(errors.ErrorTypeParsing, "report entry %d has no date line", e.Index)
	}
	fields := strings.Split(lines[1], "/")
	if len(fields) < 2 {
		return ReportMarker{}, errors.New(errors.ErrorTypeParsing, "report entry %d has no slash date: %q", e.Index, lines[1])
	}
	day, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || day < 1 || day > 31 {
		return ReportMarker{}, errors.New(errors.ErrorTypeParsing, "report entry %d has invalid day: %q", e.Index, fields[1])
	}

	return ReportMarker{Index: e.Index, Text: e.Text, Day: day}, nil
}

// ParseTimeline parses the captured timeline container markup into raw
// entries, preserving DOM order.
func ParseTimeline(html string) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeParsing, "failed to parse timeline html: %v", err)
	}

	var entries []Entry
	doc.Find("ul > li > div").Each(func(i int, sel *goquery.Selection) {
		entries = append(entries, Entry{
			Index: i + 1,
			Style: sel.AttrOr("style", ""),
			ID:    sel.AttrOr("id", ""),
			Text:  entryText(sel),
		})
	})
	return entries, nil
}

// entryText approximates the browser's outerText: each child node of the
// entry becomes one line, so the report date line stays addressable by index.
func entryText(sel *goquery.Selection) string {
	var lines []string
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if t := strings.TrimSpace(c.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	return strings.Join(lines, "\n")
}
