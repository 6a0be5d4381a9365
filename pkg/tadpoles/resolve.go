package tadpoles

// Resolve classifies the ordered entries of one page and attributes a
// calendar day to every media item.
//
// The algorithm is a single forward pass over the entries with one buffer of
// pending undated media. Media entries accumulate in the buffer; a report
// entry closes the buffer by stamping its day onto everything accumulated
// since the previous report, draining most-recently-added first, and then
// yields itself. Media left in the buffer after the last entry drains undated
// and renders as day 1.
//
// The reverse drain order is deliberate: it reproduces the portal crawler's
// long-standing output order, which downstream naming has never depended on
// but which keeps re-runs byte-for-byte comparable with old trees.
//
// Entries that are neither media nor report, and entries that classify but
// fail to parse, are dropped. This stage is pure and synchronous; it operates
// on already-fetched DOM state and never retries.
func Resolve(entries []Entry) []Item {
	var buffer []MediaItem
	var out []Item

	for _, e := range entries {
		switch Classify(e) {
		case KindMedia:
			item, err := NewMediaItem(e)
			if err != nil {
				continue
			}
			buffer = append(buffer, item)
		case KindReport:
			marker, err := NewReportMarker(e)
			if err != nil {
				continue
			}
			for i := range buffer {
				buffer[i].Day = marker.Day
			}
			for len(buffer) > 0 {
				last := len(buffer) - 1
				out = append(out, buffer[last])
				buffer = buffer[:last]
			}
			out = append(out, marker)
		}
	}

	// No trailing report: drain the remainder undated.
	for len(buffer) > 0 {
		last := len(buffer) - 1
		out = append(out, buffer[last])
		buffer = buffer[:last]
	}

	return out
}
