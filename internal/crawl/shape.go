package crawl

import "shopcrawl/internal/model"

// ShapeMatcher locates the item list inside one listing response layout.
type ShapeMatcher interface {
	Name() string
	Match(body map[string]any) (items []any, ok bool)
}

// NestedDatas matches {"data": {"datas": [...]}}.
type NestedDatas struct{}

func (NestedDatas) Name() string { return "data.datas" }

func (NestedDatas) Match(body map[string]any) ([]any, bool) {
	data := model.ObjectOf(body, "data")
	if data == nil {
		return nil, false
	}
	v, ok := data["datas"]
	if !ok {
		return nil, false
	}
	items, _ := v.([]any)
	return items, true
}

// DataList matches {"data": [...]}.
type DataList struct{}

func (DataList) Name() string { return "data" }

func (DataList) Match(body map[string]any) ([]any, bool) {
	items, ok := body["data"].([]any)
	return items, ok
}

// DefaultShapes is tried in order; the first match wins.
var DefaultShapes = []ShapeMatcher{NestedDatas{}, DataList{}}

// ExtractItems returns the item list of the first matching shape. No match
// is reported as an empty list with an empty shape name.
func ExtractItems(body map[string]any, shapes []ShapeMatcher) ([]any, string) {
	for _, s := range shapes {
		if items, ok := s.Match(body); ok {
			return items, s.Name()
		}
	}
	return nil, ""
}
