package shopapi

import (
	"fmt"
	"net/url"
	"strconv"
)

// Kind selects the listing endpoint family.
type Kind string

const (
	KindCategory Kind = "category"
	KindGroup    Kind = "group"
)

// ParseKind accepts "category" or "group".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCategory, KindGroup:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown crawl variant %q", s)
}

// Target is the category or product group paginated in one crawl.
type Target struct {
	Kind Kind
	// Key is the category slug or the product group id.
	Key string
}

// Name identifies the target in filenames and logs.
func (t Target) Name() string {
	return t.Key
}

func (t Target) path() string {
	if t.Kind == KindGroup {
		return "/product-groups/" + url.PathEscape(t.Key) + "/products"
	}
	return "/product-categories/" + url.PathEscape(t.Key) + "/products"
}

// Filters are the listing query parameters besides page.
type Filters struct {
	Brands      string
	Sort        string
	SubCategory string
	StartPrice  int
	EndPrice    int
	Rate        int
}

// DefaultFilters matches the storefront's unfiltered listing.
func DefaultFilters() Filters {
	return Filters{Sort: "-createdAt"}
}

// Query builds the parameter set for the target variant.
func (f Filters) Query(kind Kind, page int) url.Values {
	q := url.Values{}
	q.Set("brands", f.Brands)
	q.Set("sort", f.Sort)
	if kind == KindGroup {
		q.Set("startPrice", strconv.Itoa(f.StartPrice))
		q.Set("endPrice", strconv.Itoa(f.EndPrice))
	} else {
		q.Set("subCategory", f.SubCategory)
	}
	q.Set("rate", strconv.Itoa(f.Rate))
	q.Set("page", strconv.Itoa(page))
	return q
}
