// Package web renders the human-facing pages: the upload form and the
// slug share page.
package web

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/tmpdrop/service/internal/config"
	"github.com/tmpdrop/service/internal/share"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Handler serves the HTML pages.
type Handler struct {
	svc  *share.Service
	cfg  *config.Config
	tmpl *template.Template
}

// NewHandler parses the embedded templates and returns a page Handler.
func NewHandler(svc *share.Service, cfg *config.Config) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{svc: svc, cfg: cfg, tmpl: tmpl}, nil
}

type indexData struct {
	MaxInlineSize  int64
	MaxFileSize    int64
	MaxInlineHuman string
	MaxFileHuman   string
}

type shareData struct {
	FileName  string
	SizeHuman string
	Type      string
	SignedURL string
}

// Index renders the upload form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index.html", indexData{
		MaxInlineSize:  h.cfg.MaxInlineSize,
		MaxFileSize:    h.cfg.MaxFileSize,
		MaxInlineHuman: humanize.IBytes(uint64(h.cfg.MaxInlineSize)),
		MaxFileHuman:   humanize.IBytes(uint64(h.cfg.MaxFileSize)),
	})
}

// SharePage renders the download page for a slug: file name, size when
// the metadata record exists, and a time-limited signed link. Any
// resolution failure shows the generic not-found view.
func (h *Handler) SharePage(w http.ResponseWriter, r *http.Request) {
	sl := chi.URLParam(r, "slug")

	url, obj, err := h.svc.SignedDownloadURL(r.Context(), sl)
	if err != nil {
		h.NotFound(w, r)
		return
	}

	data := shareData{FileName: obj.Name, SignedURL: url}
	if obj.Size > 0 {
		data.SizeHuman = humanize.IBytes(uint64(obj.Size))
	}
	if meta, _ := h.svc.Metadata(r.Context(), sl); meta != nil {
		data.Type = meta.Type
		if meta.Size > 0 {
			data.SizeHuman = humanize.IBytes(uint64(meta.Size))
		}
	}
	h.render(w, http.StatusOK, "share.html", data)
}

// NotFound renders the generic not-found page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusNotFound, "notfound.html", nil)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("web: render %s: %v", name, err)
	}
}
