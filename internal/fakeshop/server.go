package fakeshop

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Shape selects the listing response layout.
type Shape string

const (
	// ShapeNested is {"data": {"datas": [...], "total": n, "pageSize": s}}.
	ShapeNested Shape = "nested"
	// ShapeMeta is {"data": [...], "meta": {"totalPages": n}}.
	ShapeMeta Shape = "meta"
	// ShapeList is {"data": [...]} and ends with an empty page.
	ShapeList Shape = "list"
)

type Options struct {
	Items    []map[string]any
	PageSize int
	Shape    Shape
	// BuildID is the only build segment the detail route accepts.
	BuildID string
	// FailPage answers that listing page with 502 when non-zero.
	FailPage int
	Logger   *zap.Logger
}

type handler struct {
	opts   Options
	bySlug map[string]map[string]any
	mux    *http.ServeMux
}

// NewHandler serves the category and group listings plus detail documents.
// Every listing target serves the whole catalog.
func NewHandler(opts Options) http.Handler {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.Shape == "" {
		opts.Shape = ShapeNested
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &handler{opts: opts, bySlug: make(map[string]map[string]any, len(opts.Items)), mux: http.NewServeMux()}
	for _, it := range opts.Items {
		if s, _ := it["slug"].(string); s != "" {
			h.bySlug[s] = it
		}
	}
	h.mux.HandleFunc("GET /product-categories/{key}/products", h.listing)
	h.mux.HandleFunc("GET /product-groups/{key}/products", h.listing)
	h.mux.HandleFunc("GET /_next/data/{build}/chi-tiet-san-pham/{file}", h.detail)
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.opts.Logger.Debug("request", zap.String("path", r.URL.Path), zap.String("query", r.URL.RawQuery))
	h.mux.ServeHTTP(w, r)
}

func (h *handler) listing(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, "bad page", http.StatusBadRequest)
		return
	}
	if page == h.opts.FailPage {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	size := h.opts.PageSize
	lo := (page - 1) * size
	hi := lo + size
	if lo > len(h.opts.Items) {
		lo = len(h.opts.Items)
	}
	if hi > len(h.opts.Items) {
		hi = len(h.opts.Items)
	}
	items := make([]any, 0, hi-lo)
	for _, it := range h.opts.Items[lo:hi] {
		items = append(items, it)
	}

	var body map[string]any
	switch h.opts.Shape {
	case ShapeMeta:
		pages := (len(h.opts.Items) + size - 1) / size
		body = map[string]any{"data": items, "meta": map[string]any{"totalPages": pages}}
	case ShapeList:
		body = map[string]any{"data": items}
	default:
		body = map[string]any{"data": map[string]any{"datas": items, "total": len(h.opts.Items), "pageSize": size}}
	}
	writeJSON(w, body)
}

func (h *handler) detail(w http.ResponseWriter, r *http.Request) {
	if h.opts.BuildID != "" && r.PathValue("build") != h.opts.BuildID {
		http.NotFound(w, r)
		return
	}
	slug := strings.TrimSuffix(r.PathValue("file"), ".json")
	it, ok := h.bySlug[slug]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{"pageProps": map[string]any{"product": Detail(it)}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
