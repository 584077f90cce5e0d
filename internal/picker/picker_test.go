package picker

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	assert.True(t, PDFFilter.Match("doc.pdf"))
	assert.True(t, PDFFilter.Match("/a/b/REPORT.PDF"))
	assert.False(t, PDFFilter.Match("doc.pdf.txt"))
	assert.False(t, PDFFilter.Match("pdf"))
	assert.True(t, Filter{}.Match("anything"))
	assert.Equal(t, "PDF Files (*.pdf)", PDFFilter.String())
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n%âãÏÓ\n")))
	assert.True(t, IsPDF(append(make([]byte, 100), []byte("%PDF-1.4")...)))
	assert.False(t, IsPDF([]byte("hello world")))
	assert.False(t, IsPDF(nil))
	assert.False(t, IsPDF(append(make([]byte, 2000), []byte("%PDF-1.4")...)))
}

func TestStatic_Pick(t *testing.T) {
	path, ok, err := Static{Path: "doc.pdf", Filter: PDFFilter}.Pick()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "doc.pdf", path)

	_, ok, err = Static{Filter: PDFFilter}.Pick()
	require.NoError(t, err)
	assert.False(t, ok, "empty path means cancelled")

	_, ok, err = Static{Path: "notes.txt", Filter: PDFFilter}.Pick()
	assert.False(t, ok)
	var fe *FilterError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "notes.txt")
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.pdf"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "b.PDF"))
	touch(t, filepath.Join(root, "build", "c.pdf"))
	touch(t, filepath.Join(root, "sub", "draft.pdf"))
	touch(t, filepath.Join(root, ".hidden", "d.pdf"))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("build/\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", ".gitignore"), []byte("draft.pdf\n"), 0644))

	got, err := Find([]string{root}, FindOptions{Filter: PDFFilter})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.pdf"),
		filepath.Join(root, "sub", "b.PDF"),
	}, got)

	got, err = Find([]string{root}, FindOptions{Filter: PDFFilter, NoIgnore: true, Hidden: true})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestFind_FileRoot(t *testing.T) {
	root := t.TempDir()
	pdf := filepath.Join(root, "a.pdf")
	txt := filepath.Join(root, "a.txt")
	touch(t, pdf)
	touch(t, txt)

	got, err := Find([]string{pdf, txt}, FindOptions{Filter: PDFFilter})
	require.NoError(t, err)
	assert.Equal(t, []string{pdf}, got)

	_, err = Find([]string{filepath.Join(root, "missing")}, FindOptions{Filter: PDFFilter})
	assert.Error(t, err)
}

func TestFind_ReportsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any directory")
	}
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.pdf"))
	locked := filepath.Join(root, "locked")
	touch(t, filepath.Join(locked, "b.pdf"))
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	var errs []error
	got, err := Find([]string{root}, FindOptions{
		Filter:  PDFFilter,
		OnError: func(err error) { errs = append(errs, err) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.pdf")}, got)
	require.Len(t, errs, 1)
	var we *WalkError
	require.ErrorAs(t, errs[0], &we)
	assert.Equal(t, locked, we.Path)
}

func TestFind_SkipsVCSDirs(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".git", "objects", "x.pdf"))
	touch(t, filepath.Join(root, "a.pdf"))

	got, err := Find([]string{root}, FindOptions{Filter: PDFFilter, Hidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.pdf")}, got)
}

func TestFind_Symlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(t.TempDir(), "target.pdf")
	touch(t, target)
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.pdf")))
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "broken.pdf")))

	got, err := Find([]string{root}, FindOptions{Filter: PDFFilter})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "link.pdf")}, got)
}

// findWithin runs Find and fails the test if it does not return in time.
func findWithin(t *testing.T, roots []string, opts FindOptions) []string {
	t.Helper()
	type result struct {
		found []string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		found, err := Find(roots, opts)
		done <- result{found, err}
	}()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.found
	case <-time.After(5 * time.Second):
		t.Fatal("Find did not return")
		return nil
	}
}

func TestFind_SymlinkCycle(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.pdf"))
	require.NoError(t, os.Symlink(".", filepath.Join(root, "l1")))
	require.NoError(t, os.Symlink(".", filepath.Join(root, "l2")))

	got := findWithin(t, []string{root}, FindOptions{Filter: PDFFilter, NoIgnore: true})
	assert.Equal(t, []string{filepath.Join(root, "a.pdf")}, got)
}

func TestFind_SymlinkedDirReadOnce(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "sub", "b.pdf"))
	require.NoError(t, os.Symlink("sub", filepath.Join(root, "alias")))
	require.NoError(t, os.Symlink("..", filepath.Join(root, "sub", "up")))

	got := findWithin(t, []string{root, root}, FindOptions{Filter: PDFFilter, NoIgnore: true})
	require.Len(t, got, 1)
	assert.Equal(t, "b.pdf", filepath.Base(got[0]))
}

// direntRecord encodes one linux_dirent64 record, padded to 8 bytes.
func direntRecord(name string, dtype uint8) []byte {
	reclen := (direntHeader + len(name) + 1 + 7) &^ 7
	rec := make([]byte, reclen)
	binary.NativeEndian.PutUint16(rec[16:], uint16(reclen))
	rec[18] = dtype
	copy(rec[direntHeader:], name)
	return rec
}

func TestParseDirents(t *testing.T) {
	var buf []byte
	buf = append(buf, direntRecord(".", dtDir)...)
	buf = append(buf, direntRecord("..", dtDir)...)
	buf = append(buf, direntRecord("doc.pdf", dtReg)...)
	buf = append(buf, direntRecord("sub", dtDir)...)

	got := parseDirents(buf, len(buf), nil)
	assert.Equal(t, []dirent{{name: "doc.pdf", dtype: dtReg}, {name: "sub", dtype: dtDir}}, got)

	// A truncated trailing record is ignored.
	got = parseDirents(buf, len(buf)-len(direntRecord("sub", dtDir))+5, got)
	assert.Equal(t, []dirent{{name: "doc.pdf", dtype: dtReg}}, got)
}
