package tadpoles

import (
	"fmt"
	"strings"
)

// Child is one child on the account, as reported by the portal's appParams.
type Child struct {
	DisplayName string `json:"display_name"`
	Key         string `json:"key,omitempty"`
}

// FirstName returns the lower-cased first name, the token used in download
// paths.
func (c Child) FirstName() string {
	name := strings.TrimSpace(c.DisplayName)
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Entry is one raw timeline node before classification: an opaque div with an
// optional background-image style and optional display text. DOM order is
// authoritative, so every entry carries its 1-based position.
type Entry struct {
	Index int
	Style string
	ID    string
	Text  string
}

// Page is the set of timeline entries visible for one (month, year, child)
// navigation. It is created per navigation and discarded once classified.
type Page struct {
	Month   string
	Year    string
	Child   Child
	Entries []Entry
}

// Kind is the typed classification of a raw entry.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindMedia
	KindReport
)

func (k Kind) String() string {
	switch k {
	case KindMedia:
		return "media"
	case KindReport:
		return "report"
	default:
		return "unrecognized"
	}
}

// Item is a resolved timeline item: either a MediaItem or a ReportMarker.
type Item interface {
	itemKind() Kind
}

// MediaItem is a classified photo or video entry. Day is the attributed
// day-of-month; zero means unresolved, which renders as day 1.
type MediaItem struct {
	// URL is the full-size source URL, thumbnail parameters stripped.
	URL string
	// ID is the stable identifier derived from the entry anchor, truncated
	// for filesystem safety.
	ID string
	// Key is the content key carried in the URL's query string.
	Key string
	// Day is the attributed day-of-month, backfilled from the nearest
	// following report within the same page.
	Day int
}

func (MediaItem) itemKind() Kind { return KindMedia }

// DayText renders the attributed day as two digits, defaulting to day 1 when
// no report followed the item within its page.
func (m MediaItem) DayText() string {
	day := m.Day
	if day == 0 {
		day = 1
	}
	return fmt.Sprintf("%02d", day)
}

// ReportMarker is a classified daily-report entry. Its day is authoritative:
// it dates both the report itself and the media items buffered before it.
type ReportMarker struct {
	// Index is the entry's 1-based timeline position, kept so the report
	// body can be opened by positional selector at download time.
	Index int
	// Text is the entry's display text.
	Text string
	// Day is the day-of-month parsed from the display text.
	Day int
}

func (ReportMarker) itemKind() Kind { return KindReport }

// DayText renders the report day as two digits.
func (r ReportMarker) DayText() string {
	return fmt.Sprintf("%02d", r.Day)
}
