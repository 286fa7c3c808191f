// Package views renders the HTML screens from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"foodrankr-web/internal/session"
)

//go:embed templates/*.html
var files embed.FS

// Page names.
const (
	Gate  = "gate"
	Feed  = "feed"
	Rank  = "rank"
	Admin = "admin"
)

// Page is what the layout needs around a screen's own data.
type Page struct {
	Title    string
	SignedIn bool
	Admin    bool
	UserName string
	Content  any
}

// NewPage builds the layout data for sess. A nil sess renders signed out.
func NewPage(title string, sess *session.Session, content any) Page {
	p := Page{Title: title, Content: content}
	if sess.Authenticated() {
		p.SignedIn = true
		p.Admin = sess.Admin()
		p.UserName = sess.User.FullName
		if p.UserName == "" {
			p.UserName = sess.User.Email
		}
	}
	return p
}

// StatCard is one admin counter.
type StatCard struct {
	Label string
	Count float64
}

// StatCards orders counters by label and makes labels readable.
func StatCards(stats map[string]float64) []StatCard {
	cards := make([]StatCard, 0, len(stats))
	for k, v := range stats {
		cards = append(cards, StatCard{Label: Label(k), Count: v})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Label < cards[j].Label })
	return cards
}

// Label replaces underscores with spaces.
func Label(s string) string { return strings.ReplaceAll(s, "_", " ") }

// Stars renders a 1..5 rating as filled stars.
func Stars(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat("★", n)
}

// Count prints whole numbers without a fraction.
func Count(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

var funcs = template.FuncMap{
	"stars": Stars,
	"label": Label,
	"count": Count,
	"seq":   seq,
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

func New(logger *zap.Logger) (*Renderer, error) {
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/ratings.html")
	if err != nil {
		return nil, fmt.Errorf("views: parse layout: %w", err)
	}
	r := &Renderer{pages: make(map[string]*template.Template), logger: logger.Named("views")}
	for _, name := range []string{Gate, Feed, Rank, Admin} {
		t, err := template.Must(layout.Clone()).ParseFS(files, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("views: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes page into a buffer first so a template error never leaves a
// half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown page", zap.String("page", name))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		r.logger.Error("render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Fragment executes a named template without the layout, e.g. the ratings list.
func (r *Renderer) Fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.pages[Feed].ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("views: fragment %s: %w", name, err)
	}
	return buf.String(), nil
}
