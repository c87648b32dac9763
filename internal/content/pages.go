package content

import (
	"bytes"
	"html/template"
	"io"
	"net/url"
	"os"
	"path"
	"sort"

	"golang.org/x/text/cases"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
)

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { text-align: left; padding: 0.2em 1.5em 0.2em 0; }
td.size, td.date { font-variant-numeric: tabular-nums; }
tr.dir a { font-weight: bold; }
</style>
</head>
<body>
{{end}}
{{define "index"}}{{template "head" .Title}}<h1>{{.Title}}</h1>
<table>
<tr><th>Name</th><th>Size</th><th>Date Modified</th></tr>
{{range .Dirs}}<tr class="dir"><td><a href="{{.Href}}">{{.Name}}/</a></td><td class="size">{{.Size}}</td><td class="date">{{.Modified}}</td></tr>
{{end}}{{range .Files}}<tr class="file"><td><a href="{{.Href}}">{{.Name}}</a></td><td class="size">{{.Size}}</td><td class="date">{{.Modified}}</td></tr>
{{end}}</table>
</body>
</html>
{{end}}
{{define "notfound"}}{{template "head" "File not found"}}<h1>File not found</h1>
<p>The file <b>{{.}}</b> cannot be found. It may have been moved, edited, or deleted.</p>
</body>
</html>
{{end}}
{{define "noroot"}}{{template "head" "No server root"}}<h1>No server root</h1>
<p>There is no workspace folder to serve from. Open a folder, or preview a single file to browse it here.</p>
</body>
</html>
{{end}}`))

type indexEntry struct {
	Name     string
	Href     string
	Size     string
	Modified string
}

type indexData struct {
	Title string
	Dirs  []indexEntry
	Files []indexEntry
}

// IndexPage lists dirPath. urlPath is the request path the listing is served under; ".." is
// listed first unless it is the site root.
func (l *Loader) IndexPage(dirPath, urlPath string) (*Stream, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read directory").
			WithContext("path", dirPath).
			Build()
	}

	data := indexData{Title: "Index of " + urlPath}
	if path.Clean("/"+urlPath) != "/" {
		data.Dirs = append(data.Dirs, indexEntry{Name: "..", Href: "../"})
	}

	var dirs, files []indexEntry
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// entry vanished between ReadDir and Info
			continue
		}
		entry := indexEntry{
			Name:     e.Name(),
			Href:     url.PathEscape(e.Name()),
			Modified: FormatDateTime(info.ModTime()),
		}
		if info.IsDir() {
			entry.Href += "/"
			dirs = append(dirs, entry)
			continue
		}
		entry.Size = FormatFileSize(info.Size())
		files = append(files, entry)
	}
	// a Caser keeps state, so each listing gets its own
	fold := cases.Fold()
	byName := func(s []indexEntry) {
		sort.SliceStable(s, func(i, j int) bool { return fold.String(s[i].Name) < fold.String(s[j].Name) })
	}
	byName(dirs)
	byName(files)
	data.Dirs = append(data.Dirs, dirs...)
	data.Files = files

	l.recorder.IncPageGenerated(metrics.PageIndex)
	return l.render("index", data)
}

// PageDoesNotExist renders the 404 body naming the requested path.
func (l *Loader) PageDoesNotExist(requestPath string) *Stream {
	l.recorder.IncPageGenerated(metrics.PageDoesNotExist)
	s, err := l.render("notfound", requestPath)
	if err != nil {
		return l.textStream("File not found", "text/plain", false)
	}
	return s
}

// NoRootServer renders the page served at / when there is no workspace.
func (l *Loader) NoRootServer() *Stream {
	l.recorder.IncPageGenerated(metrics.PageNoRoot)
	s, err := l.render("noroot", nil)
	if err != nil {
		return l.textStream("No server root", "text/plain", false)
	}
	return s
}

func (l *Loader) render(name string, data any) (*Stream, error) {
	var buf bytes.Buffer
	buf.WriteString(l.injector.Tag())
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to render page").
			WithContext("page", name).
			Build()
	}
	return &Stream{
		Body:        io.NopCloser(&buf),
		ContentType: "text/html",
		Injected:    true,
	}, nil
}
