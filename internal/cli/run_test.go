package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl/pdfload/internal/output"
	"github.com/dl/pdfload/internal/picker"
)

type testApp struct {
	*App
	outPath string
	logs    *bytes.Buffer
}

func newTestApp(t *testing.T, cfg Config) *testApp {
	t.Helper()
	outPath := filepath.Join(t.TempDir(), "stdout")
	f, err := os.Create(outPath)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	if cfg.Color == ColorAuto {
		cfg.Color = ColorNever
	}
	logs := &bytes.Buffer{}
	app, err := NewApp(cfg, output.NewFdWriter(int(f.Fd())), logs)
	require.NoError(t, err)
	return &testApp{App: app, outPath: outPath, logs: logs}
}

func (a *testApp) output(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(a.outPath)
	require.NoError(t, err)
	return string(data)
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const digits = "0123456789"

// cancelledPicker behaves like a dialog the user dismissed.
type cancelledPicker struct{}

func (cancelledPicker) Pick() (string, bool, error) { return "", false, nil }

type failingPicker struct{ err error }

func (p failingPicker) Pick() (string, bool, error) { return "", false, p.err }

func TestNewApp_InvalidConfig(t *testing.T) {
	_, err := NewApp(Config{ChunkSize: -1}, output.NewFdWriter(1), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.pdf", digits)
	b := writeDoc(t, dir, "b.pdf", "")

	app := newTestApp(t, Config{Paths: []string{a, b}})
	require.Equal(t, ExitOK, app.Info(), "logs: %s", app.logs)

	want := a + ": 0.00 MB (10 bytes)\n" + b + ": 0.00 MB (0 bytes)\n"
	assert.Equal(t, want, app.output(t))
}

func TestInfo_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.pdf")
	app := newTestApp(t, Config{Paths: []string{missing}})
	require.Equal(t, ExitError, app.Info())
	assert.Contains(t, app.output(t), "error[metadata]")
	assert.Contains(t, app.logs.String(), "read failed")
}

func TestInfo_Selection(t *testing.T) {
	dir := t.TempDir()
	txt := writeDoc(t, dir, "notes.txt", digits)

	assert.Equal(t, ExitNone, newTestApp(t, Config{}).Info(), "no paths")
	assert.Equal(t, ExitError, newTestApp(t, Config{Paths: []string{txt}}).Info(), "filtered")
	assert.Equal(t, ExitOK, newTestApp(t, Config{Paths: []string{txt}, AnyFile: true}).Info(), "any file")
}

func TestPickers_Cancelled(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "doc.pdf", digits)
	ctx := context.Background()

	commands := map[string]func(*App) int{
		"info":  (*App).Info,
		"read":  func(a *App) int { return a.Read(ctx) },
		"chunk": func(a *App) int { return a.Chunk(ctx) },
		"cat":   func(a *App) int { return a.Cat(ctx) },
		"range": func(a *App) int { return a.Range(ctx) },
	}
	for name, run := range commands {
		t.Run(name, func(t *testing.T) {
			app := newTestApp(t, Config{})
			app.pickers = []picker.Picker{cancelledPicker{}}
			assert.Equal(t, ExitNone, run(app.App))
			assert.Empty(t, app.output(t))

			// A later cancellation discards earlier selections.
			app = newTestApp(t, Config{})
			app.pickers = []picker.Picker{picker.Static{Path: path, Filter: picker.PDFFilter}, cancelledPicker{}}
			assert.Equal(t, ExitNone, run(app.App))
			assert.Empty(t, app.output(t))
		})
	}
}

func TestPickers_Failing(t *testing.T) {
	app := newTestApp(t, Config{})
	app.pickers = []picker.Picker{failingPicker{err: errors.New("dialog crashed")}}

	assert.Equal(t, ExitError, app.Info())
	assert.Empty(t, app.output(t))
	assert.Contains(t, app.logs.String(), "invalid selection")
	assert.Contains(t, app.logs.String(), "dialog crashed")
}

func TestRead_Raw(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "doc.pdf", digits)
	app := newTestApp(t, Config{Paths: []string{path}, Raw: true})
	require.Equal(t, ExitOK, app.Read(context.Background()), "logs: %s", app.logs)
	assert.Equal(t, digits, app.output(t))
}

func TestRead_JSON(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "doc.pdf", digits)
	app := newTestApp(t, Config{Paths: []string{path}, JSONOutput: true})
	require.Equal(t, ExitOK, app.Read(context.Background()), "logs: %s", app.logs)

	got := app.output(t)
	assert.Contains(t, got, `"type":"read"`)
	assert.Contains(t, got, `"sha256":"84d89877f0d4041efb6bf91a16f0248f2fd573e6af05c19f96bedb9f882f7882"`)
}

func TestChunk(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "doc.pdf", digits)

	app := newTestApp(t, Config{Paths: []string{path}, ChunkSize: 4, Offset: 4, Raw: true})
	require.Equal(t, ExitOK, app.Chunk(context.Background()), "logs: %s", app.logs)
	assert.Equal(t, "4567", app.output(t))

	app = newTestApp(t, Config{Paths: []string{path}, ChunkSize: 4, Offset: 100})
	require.Equal(t, ExitOK, app.Chunk(context.Background()), "past EOF")
	assert.Contains(t, app.output(t), "offset 100, 0 bytes (EOF)")
}

func TestChunk_SingleDocument(t *testing.T) {
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.pdf", digits)
	b := writeDoc(t, dir, "b.pdf", digits)
	app := newTestApp(t, Config{Paths: []string{a, b}})
	assert.Equal(t, ExitError, app.Chunk(context.Background()))
}

func TestCat(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "doc.pdf", digits)
	app := newTestApp(t, Config{Paths: []string{path}, ChunkSize: 3})
	require.Equal(t, ExitOK, app.Cat(context.Background()), "logs: %s", app.logs)
	assert.Equal(t, digits, app.output(t))
}

func TestCat_Missing(t *testing.T) {
	app := newTestApp(t, Config{Paths: []string{filepath.Join(t.TempDir(), "gone.pdf")}})
	assert.Equal(t, ExitError, app.Cat(context.Background()))
}

func TestRange(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "doc.pdf", digits)

	tests := []struct {
		name          string
		start, length int64
		want          string
	}{
		{"middle", 2, 5, "23456"},
		{"to end", 2, 0, "23456789"},
		{"past end", 8, 10, "89"},
		{"beyond EOF", 50, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, Config{Paths: []string{path}, Start: tt.start, Length: tt.length, Prefetch: 2, Raw: true})
			require.Equal(t, ExitOK, app.Range(context.Background()), "logs: %s", app.logs)
			assert.Equal(t, tt.want, app.output(t))
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "real.pdf", "%PDF-1.7\n")
	writeDoc(t, dir, "fake.pdf", "not a pdf")
	writeDoc(t, dir, "notes.txt", "%PDF-1.7\n")

	app := newTestApp(t, Config{Paths: []string{dir}})
	require.Equal(t, ExitOK, app.Find(), "logs: %s", app.logs)
	assert.Equal(t, doc+": 0.00 MB (9 bytes)\n", app.output(t))
}

func TestFind_Nothing(t *testing.T) {
	app := newTestApp(t, Config{Paths: []string{t.TempDir()}})
	assert.Equal(t, ExitNone, app.Find())
}

func TestWatch(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "doc.pdf", digits)
	app := newTestApp(t, Config{Paths: []string{path}, Debounce: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() { done <- app.Watch(ctx) }()

	waitOutput := func(want string) {
		t.Helper()
		require.Eventually(t, func() bool {
			data, _ := os.ReadFile(app.outPath)
			return bytes.Contains(data, []byte(want))
		}, 2*time.Second, 10*time.Millisecond, "waiting for %q", want)
	}

	waitOutput("(10 bytes)")
	// Let the watch register before changing the file.
	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	f.WriteString("abcde")
	f.Close()
	waitOutput("(15 bytes)")

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, ExitOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
