// Package web renders the HTML pages, carries flash messages between
// requests and maps application errors onto pages and redirects.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/strokecare/strokecare/internal/platform/auth"
)

//go:embed templates/*.html
var templateFiles embed.FS

// CSRFContextKey is where the CSRF middleware leaves the token for forms.
const CSRFContextKey = "csrf"

// View is what every template executes against. Page-specific data sits in
// Data.
type View struct {
	Title     string
	User      *auth.Identity
	CSRFToken string
	Flashes   []Flash
	Data      interface{}
}

// Page lets handlers set the title next to their data.
type Page struct {
	Title string
	Data  interface{}
}

// Renderer implements echo.Renderer over the embedded templates. Each page
// is parsed together with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	"yesno": func(flag int) string {
		if flag == 1 {
			return "Yes"
		}
		return "No"
	},
	"optfloat": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
	"num": func(v float64) string {
		return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	},
}

// NewRenderer parses every page template against layout.html.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFiles)
}

func newRenderer(files fs.FS) (*Renderer, error) {
	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		base := strings.TrimSuffix(path.Base(name), ".html")
		if base == "layout" {
			continue
		}
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(files, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[base] = t
	}
	return r, nil
}

// Render executes the named page. data may be a Page, a *View or any value
// that becomes View.Data.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	var view *View
	switch d := data.(type) {
	case *View:
		view = d
	case Page:
		view = &View{Title: d.Title, Data: d.Data}
	default:
		view = &View{Data: data}
	}

	if c != nil {
		view.User = auth.IdentityFromContext(c.Request().Context())
		if tok, ok := c.Get(CSRFContextKey).(string); ok {
			view.CSRFToken = tok
		}
		view.Flashes = append(view.Flashes, PopFlashes(c)...)
	}

	return t.ExecuteTemplate(w, "layout.html", view)
}
