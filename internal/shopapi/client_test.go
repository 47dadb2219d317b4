package shopapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListProducts_CategoryQuery(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"data":{"datas":[],"total":0}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	f := DefaultFilters()
	f.SubCategory = "sap"
	doc, meta, err := c.ListProducts(context.Background(), Target{Kind: KindCategory, Key: "tao-kieu"}, 3, f)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if meta.StatusCode != 200 || doc["data"] == nil {
		t.Fatalf("unexpected result meta=%+v doc=%v", meta, doc)
	}
	if gotPath != "/product-categories/tao-kieu/products" {
		t.Fatalf("path: %s", gotPath)
	}
	for k, want := range map[string]string{"page": "3", "sort": "-createdAt", "subCategory": "sap", "rate": "0", "brands": ""} {
		if v, ok := gotQuery[k]; !ok || v[0] != want {
			t.Fatalf("query %s=%v want %q", k, v, want)
		}
	}
	if _, ok := gotQuery["startPrice"]; ok {
		t.Fatalf("category query must not carry startPrice")
	}
	if gotUA != "test-agent" {
		t.Fatalf("user agent: %q", gotUA)
	}
}

func TestListProducts_GroupQuery(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Options{BaseURL: srv.URL})
	f := DefaultFilters()
	f.EndPrice = 500000
	if _, _, err := c.ListProducts(context.Background(), Target{Kind: KindGroup, Key: "60ff8e57"}, 1, f); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if gotPath != "/product-groups/60ff8e57/products" {
		t.Fatalf("path: %s", gotPath)
	}
	if gotQuery["endPrice"][0] != "500000" || gotQuery["startPrice"][0] != "0" {
		t.Fatalf("price params: %v", gotQuery)
	}
	if _, ok := gotQuery["subCategory"]; ok {
		t.Fatalf("group query must not carry subCategory")
	}
}

func TestListProducts_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			w.WriteHeader(http.StatusBadGateway)
		case "2":
			_, _ = w.Write([]byte(`not json`))
		default:
			_, _ = w.Write([]byte(`[1,2,3]`))
		}
	}))
	defer srv.Close()
	c, _ := NewClient(Options{BaseURL: srv.URL})
	target := Target{Kind: KindCategory, Key: "x"}

	_, meta, err := c.ListProducts(context.Background(), target, 1, DefaultFilters())
	var te *TransportError
	if !errors.As(err, &te) || te.Status != http.StatusBadGateway || te.Page != 1 || meta.StatusCode != http.StatusBadGateway {
		t.Fatalf("want TransportError 502, got %v", err)
	}
	var me *MalformedError
	if _, _, err := c.ListProducts(context.Background(), target, 2, DefaultFilters()); !errors.As(err, &me) || me.Page != 2 {
		t.Fatalf("want MalformedError, got %v", err)
	}
	if _, _, err := c.ListProducts(context.Background(), target, 3, DefaultFilters()); !errors.As(err, &me) {
		t.Fatalf("want MalformedError for array body, got %v", err)
	}
}

func TestListProducts_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c, _ := NewClient(Options{BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.ListProducts(ctx, Target{Kind: KindCategory, Key: "x"}, 1, DefaultFilters())
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, context.Canceled) {
		t.Fatalf("want TransportError wrapping context.Canceled, got %v", err)
	}
}

func TestProductDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/_next/data/build-1/chi-tiet-san-pham/sap.json":
			if r.URL.Query().Get("slug") != "sap" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"pageProps":{"product":{"description":"<p>x</p>"}}}`))
		case "/_next/data/build-1/chi-tiet-san-pham/empty.json":
			_, _ = w.Write([]byte(`{"pageProps":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c, _ := NewClient(Options{DetailBaseURL: srv.URL, BuildID: "build-1"})

	doc, _, err := c.ProductDetail(context.Background(), "sap")
	if err != nil || doc["description"] != "<p>x</p>" {
		t.Fatalf("detail: doc=%v err=%v", doc, err)
	}
	doc, _, err = c.ProductDetail(context.Background(), "empty")
	if err != nil || doc != nil {
		t.Fatalf("empty detail: doc=%v err=%v", doc, err)
	}
	var te *TransportError
	if _, _, err := c.ProductDetail(context.Background(), "missing"); !errors.As(err, &te) || te.Status != 404 || te.Slug != "missing" {
		t.Fatalf("want 404 TransportError, got %v", err)
	}
}
