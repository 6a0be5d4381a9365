package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestMediaCandidates(t *testing.T) {
	m := newTestManager(t)
	target := MediaTarget{Child: "maya", Year: "2021", Month: "10", Day: "05", ID: "44556677"}

	paths := m.MediaCandidates(target)
	require.Len(t, paths, 3)

	dir := filepath.Join(m.BaseDir(), "maya", "2021", "10")
	assert.Equal(t, filepath.Join(dir, "tadpoles-maya-2021-10-05-44556677.jpg"), paths[0])
	assert.Equal(t, filepath.Join(dir, "tadpoles-maya-2021-10-05-44556677.png"), paths[1])
	assert.Equal(t, filepath.Join(dir, "tadpoles-maya-2021-10-05-44556677.mp4"), paths[2])
}

func TestReportPath(t *testing.T) {
	m := newTestManager(t)
	target := ReportTarget{Child: "leo", Year: "2022", Month: "03", Day: "14"}

	want := filepath.Join(m.BaseDir(), "leo", "2022", "03", "tadpoles-leo-2022-03-14.html")
	assert.Equal(t, want, m.ReportPath(target))
}

func TestAnyExists(t *testing.T) {
	m := newTestManager(t)
	target := MediaTarget{Child: "maya", Year: "2021", Month: "10", Day: "05", ID: "44556677"}
	paths := m.MediaCandidates(target)

	_, found := m.AnyExists(paths)
	assert.False(t, found)

	// Any one candidate marks the whole item as downloaded.
	require.NoError(t, m.WriteFile(paths[2], []byte("video")))
	got, found := m.AnyExists(paths)
	require.True(t, found)
	assert.Equal(t, paths[2], got)
}

func TestExtensionForContentType(t *testing.T) {
	ext, ok := ExtensionForContentType("image/jpeg")
	require.True(t, ok)
	assert.Equal(t, "jpg", ext)

	ext, ok = ExtensionForContentType("video/mp4")
	require.True(t, ok)
	assert.Equal(t, "mp4", ext)

	_, ok = ExtensionForContentType("text/html")
	assert.False(t, ok)
}

func TestWriteFileAtomic(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.BaseDir(), "a", "b", "report.html")

	require.NoError(t, m.WriteFile(path, []byte("<html>ok</html>")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLazyWriterStreamsAndCommits(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.BaseDir(), "maya", "2021", "10", "item.jpg")

	w := m.NewLazyWriter(path)
	assert.False(t, w.Opened())

	_, err := w.Write([]byte("chunk1"))
	require.NoError(t, err)
	assert.True(t, w.Opened())

	_, err = w.Write([]byte("chunk2"))
	require.NoError(t, err)

	// Final file does not exist until Commit.
	assert.False(t, m.Exists(path))
	require.NoError(t, w.Commit())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chunk1chunk2", string(data))
}

func TestLazyWriterEmptyBodyLeavesNoFile(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.BaseDir(), "empty.jpg")

	w := m.NewLazyWriter(path)
	require.NoError(t, w.Commit())

	assert.False(t, m.Exists(path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLazyWriterDiscard(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.BaseDir(), "partial.mp4")

	w := m.NewLazyWriter(path)
	_, err := w.Write([]byte("partial data"))
	require.NoError(t, err)

	w.Discard()
	assert.False(t, m.Exists(path))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
