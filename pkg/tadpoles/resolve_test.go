package tadpoles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAttributesDates(t *testing.T) {
	entries := []Entry{
		mediaEntry(1, "ka", "aaaaaaaa"),
		mediaEntry(2, "kb", "bbbbbbbb"),
		reportEntry(3, "Daily Report\n10/05/2021"),
		mediaEntry(4, "kc", "cccccccc"),
		reportEntry(5, "Daily Report\n10/09/2021"),
	}

	items := Resolve(entries)
	require.Len(t, items, 5)

	// Buffered media drain most-recently-added first, then the report.
	b, ok := items[0].(MediaItem)
	require.True(t, ok)
	assert.Equal(t, "kb", b.Key)
	assert.Equal(t, 5, b.Day)

	a, ok := items[1].(MediaItem)
	require.True(t, ok)
	assert.Equal(t, "ka", a.Key)
	assert.Equal(t, 5, a.Day)

	r1, ok := items[2].(ReportMarker)
	require.True(t, ok)
	assert.Equal(t, 5, r1.Day)

	c, ok := items[3].(MediaItem)
	require.True(t, ok)
	assert.Equal(t, "kc", c.Key)
	assert.Equal(t, 9, c.Day)

	r2, ok := items[4].(ReportMarker)
	require.True(t, ok)
	assert.Equal(t, 9, r2.Day)
}

func TestResolveDefaultsTrailingMediaToDayOne(t *testing.T) {
	entries := []Entry{
		reportEntry(1, "Daily Report\n10/12/2021"),
		mediaEntry(2, "ka", "aaaaaaaa"),
		mediaEntry(3, "kb", "bbbbbbbb"),
	}

	items := Resolve(entries)
	require.Len(t, items, 3)

	_, ok := items[0].(ReportMarker)
	require.True(t, ok)

	for _, item := range items[1:] {
		media, ok := item.(MediaItem)
		require.True(t, ok)
		assert.Equal(t, 0, media.Day)
		assert.Equal(t, "01", media.DayText())
	}
}

func TestResolveEachReportClosesOnlyItsBatch(t *testing.T) {
	entries := []Entry{
		mediaEntry(1, "ka", "aaaaaaaa"),
		reportEntry(2, "Daily Report\n10/03/2021"),
		mediaEntry(3, "kb", "bbbbbbbb"),
		reportEntry(4, "Daily Report\n10/04/2021"),
	}

	items := Resolve(entries)
	require.Len(t, items, 4)

	assert.Equal(t, 3, items[0].(MediaItem).Day)
	assert.Equal(t, 3, items[1].(ReportMarker).Day)
	assert.Equal(t, 4, items[2].(MediaItem).Day)
	assert.Equal(t, 4, items[3].(ReportMarker).Day)
}

func TestResolveIgnoresUnrecognizedAndMalformed(t *testing.T) {
	entries := []Entry{
		{Index: 1, Text: "decorative spacer"},
		// Classifies as media but has no key parameter, so it is dropped.
		{Index: 2, Style: `background-image: url("/x?thumbnail=true")`, ID: "entry-zz"},
		mediaEntry(3, "ka", "aaaaaaaa"),
		reportEntry(4, "Daily Report\n10/06/2021"),
	}

	items := Resolve(entries)
	require.Len(t, items, 2)
	assert.Equal(t, 6, items[0].(MediaItem).Day)
	assert.Equal(t, 6, items[1].(ReportMarker).Day)
}

func TestResolveEmptyPage(t *testing.T) {
	assert.Empty(t, Resolve(nil))
}
