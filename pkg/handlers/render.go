package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"uninotes/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Layouts select the page chrome.
const (
	LayoutPublic  = "public"
	LayoutStudent = "student"
	LayoutAdmin   = "admin"
)

// Page is the data every template receives.
type Page struct {
	Title  string
	Layout string
	Active string
	User   *models.User
	Error  string
	Notice string
	Data   interface{}
}

// liveViews are the list pages that reload when notes or the session change
// elsewhere. Form pages are left alone so unsaved input survives.
var liveViews = map[string]bool{
	"dashboard":   true,
	"admin-notes": true,
}

// Live reports whether the page subscribes to /events.
func (p *Page) Live() bool {
	return liveViews[p.Active]
}

var (
	codeBlockRegex  = regexp.MustCompile("(?s)```([\\s\\S]*?)```")
	boldRegex       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRegex     = regexp.MustCompile(`\*([^*\n]+)\*`)
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
	headingRegex    = regexp.MustCompile(`(?m)^# (.+)$`)
)

// formatContent renders the small markdown subset notes use.
func formatContent(s string) template.HTML {
	if s == "" {
		return template.HTML("Empty note...")
	}

	s = template.HTMLEscapeString(s)

	// Code blocks are swapped for placeholders so later rules leave them alone
	codeBlocks := codeBlockRegex.FindAllString(s, -1)
	processed := make([]string, len(codeBlocks))
	for i, block := range codeBlocks {
		processed[i] = block
		if content := codeBlockRegex.FindStringSubmatch(block); len(content) > 1 {
			processed[i] = "<pre><code>" + strings.TrimSpace(content[1]) + "</code></pre>"
		}
		s = strings.Replace(s, block, fmt.Sprintf("__CODEBLOCK_%d__", i), 1)
	}

	// Headings are line based, so they go before newlines become <br>
	s = headingRegex.ReplaceAllString(s, "<strong class=\"heading\">$1</strong>")
	s = strings.ReplaceAll(s, "\n", "<br>")
	s = boldRegex.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRegex.ReplaceAllString(s, "<em>$1</em>")
	s = inlineCodeRegex.ReplaceAllString(s, "<code>$1</code>")

	for i, block := range processed {
		s = strings.Replace(s, fmt.Sprintf("__CODEBLOCK_%d__", i), block, 1)
	}
	return template.HTML(s)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

var funcMap = template.FuncMap{
	"formatContent": formatContent,
	"shorten":       shorten,
	"date":          formatDate,
	"lower":         strings.ToLower,
	"fixed": func(f float64) string {
		return fmt.Sprintf("%.1f", f)
	},
}

// Renderer holds one template set per page, each combined with the layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		name := path.Base(file)
		if name == "layout.html" {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[strings.TrimSuffix(name, ".html")] = t
	}
	return r, nil
}

// Render executes page into a buffer first so a template error never leaves
// a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data *Page) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
