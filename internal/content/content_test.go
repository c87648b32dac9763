package content

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livepreview/internal/documents"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

func readAll(t *testing.T, s *Stream) string {
	t.Helper()
	defer s.Close()
	b, err := io.ReadAll(s)
	require.NoError(t, err)
	return string(b)
}

func newTestLoader(docs documents.Lookup) *Loader {
	inj := NewInjector()
	inj.SetWSURL("ws://127.0.0.1:3001/token")
	return NewLoader(inj, docs, nil)
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.0 B"},
		{500, "500.0 B"},
		{1023, "1023.0 B"},
		{2048, "2.0 kB"},
		{1536, "1.5 kB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
		{4096 * 1024 * 1024 * 1024 * 1024, "4096.0 TB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.in), "size %d", tt.in)
	}
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2023, time.March, 4, 5, 6, 7, 0, time.Local)
	assert.Equal(t, "03/04/23 05:06:07", FormatDateTime(ts))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/html", ContentTypeFor("/a/index.HTML"))
	assert.Equal(t, "text/css", ContentTypeFor("style.css"))
	assert.Equal(t, "text/javascript", ContentTypeFor("app.js"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("blob.unknownext"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("Makefile"))

	assert.True(t, IsInjectable("page.htm"))
	assert.True(t, IsInjectable("page.xhtml"))
	assert.False(t, IsInjectable("notes.txt"))
	assert.False(t, IsInjectable("image.png"))
}

func TestInjector(t *testing.T) {
	inj := NewInjector()
	assert.Equal(t, "<script type=\"text/javascript\" src=\""+ScriptPath+"\"></script>\n", inj.Tag())
	inj.SetWSURL("ws://127.0.0.1:4001/abc")
	assert.Contains(t, inj.Script(), `"ws://127.0.0.1:4001/abc"`)
	assert.NotContains(t, inj.Script(), wsURLToken)

	inj.SetWSURL("ws://127.0.0.1:4002/abc")
	assert.Contains(t, inj.Script(), "4002")
}

func TestNewInjectorFromFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.js")
	require.NoError(t, os.WriteFile(good, []byte(`connect("${WS_URL}")`), 0o600))
	inj, err := NewInjectorFromFile(good)
	require.NoError(t, err)
	inj.SetWSURL("ws://h:1/p")
	assert.Equal(t, `connect("ws://h:1/p")`, inj.Script())

	bad := filepath.Join(dir, "bad.js")
	require.NoError(t, os.WriteFile(bad, []byte(`connect()`), 0o600))
	_, err = NewInjectorFromFile(bad)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = NewInjectorFromFile(filepath.Join(dir, "missing.js"))
	assert.Error(t, err)
}

func TestFileStream(t *testing.T) {
	dir := t.TempDir()
	html := filepath.Join(dir, "index.html")
	txt := filepath.Join(dir, "notes.txt")
	empty := filepath.Join(dir, "empty.css")
	require.NoError(t, os.WriteFile(html, []byte("<p>hi</p>"), 0o600))
	require.NoError(t, os.WriteFile(txt, []byte("<p>not html</p>"), 0o600))
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	l := newTestLoader(nil)

	s, err := l.FileStream(html)
	require.NoError(t, err)
	assert.True(t, s.Injected)
	assert.Equal(t, "text/html", s.ContentType)
	assert.Equal(t, l.Injector().Tag()+"<p>hi</p>", readAll(t, s))

	s, err = l.FileStream(txt)
	require.NoError(t, err)
	assert.False(t, s.Injected)
	assert.Equal(t, "<p>not html</p>", readAll(t, s))

	s, err = l.FileStream(empty)
	require.NoError(t, err)
	assert.Empty(t, readAll(t, s))

	_, err = l.FileStream(filepath.Join(dir, "missing.html"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	_, err = l.FileStream(dir)
	require.Error(t, err, "directories cannot be streamed")
}

func TestFileStream_PrefersDirtyDocument(t *testing.T) {
	dir := t.TempDir()
	html := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(html, []byte("disk"), 0o600))

	docs := documents.NewStore(nil)
	docs.SetDirty(html, "editor")
	docs.SetUntitled("Untitled-1", "scratch")
	l := newTestLoader(docs)

	s, err := l.FileStream(html)
	require.NoError(t, err)
	assert.Equal(t, l.Injector().Tag()+"editor", readAll(t, s))

	s, ok := l.UntitledStream("Untitled-1")
	require.True(t, ok)
	assert.Equal(t, "application/octet-stream", s.ContentType)
	assert.Equal(t, "scratch", readAll(t, s))

	_, ok = l.UntitledStream("Untitled-2")
	assert.False(t, ok)
}

func TestScriptStream(t *testing.T) {
	l := newTestLoader(nil)
	s := l.ScriptStream()
	assert.Equal(t, "text/javascript", s.ContentType)
	assert.Contains(t, readAll(t, s), "ws://127.0.0.1:3001/token")
}

func TestIndexPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "zdir"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Adir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a file.txt"), make([]byte, 2048), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.html"), []byte("x"), 0o600))
	l := newTestLoader(nil)

	s, err := l.IndexPage(dir, "/sub/")
	require.NoError(t, err)
	body := readAll(t, s)

	assert.True(t, strings.HasPrefix(body, l.Injector().Tag()))
	assert.Contains(t, body, "<th>Name</th><th>Size</th><th>Date Modified</th>")
	assert.Contains(t, body, `<a href="../">../</a>`)
	assert.Contains(t, body, `<a href="a%20file.txt">a file.txt</a>`)
	assert.Contains(t, body, "2.0 kB")

	// directories (with ".." first) come before files
	parent := strings.Index(body, `href="../"`)
	adir := strings.Index(body, `href="Adir/"`)
	zdir := strings.Index(body, `href="zdir/"`)
	afile := strings.Index(body, `href="a%20file.txt"`)
	bfile := strings.Index(body, `href="b.html"`)
	assert.True(t, parent < adir && adir < zdir && zdir < afile && afile < bfile)

	s, err = l.IndexPage(dir, "/")
	require.NoError(t, err)
	assert.NotContains(t, readAll(t, s), `href="../"`)

	_, err = l.IndexPage(filepath.Join(dir, "nope"), "/nope/")
	assert.Error(t, err)
}

func TestGeneratedPages(t *testing.T) {
	l := newTestLoader(nil)

	body := readAll(t, l.PageDoesNotExist("/missing/page.html"))
	assert.True(t, strings.HasPrefix(body, l.Injector().Tag()))
	assert.Contains(t, body, "/missing/page.html")

	body = readAll(t, l.PageDoesNotExist("/<script>"))
	assert.NotContains(t, body, "<b><script>")
	assert.Contains(t, body, "&lt;script&gt;")

	body = readAll(t, l.NoRootServer())
	assert.Contains(t, body, "No server root")
}
