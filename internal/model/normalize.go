package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Normalize converts one raw listing item into a Record.
// Missing or null fields, including the nested category, subCategory, brand
// and featuredImage objects, yield zero values.
func Normalize(raw map[string]any) Record {
	category := ObjectOf(raw, "category")
	sub := ObjectOf(raw, "subCategory")
	brand := ObjectOf(raw, "brand")
	image := ObjectOf(raw, "featuredImage")

	return Record{
		ID:              StringOf(raw, "id"),
		Name:            StringOf(raw, "name"),
		Slug:            StringOf(raw, "slug"),
		Price:           NumberOf(raw, "price"),
		ListedPrice:     NumberOf(raw, "listedPrice"),
		DiscountPercent: NumberOf(raw, "discountPercent"),
		IsDiscount:      BoolOf(raw, "isDiscount"),
		IsOutOfStock:    BoolOf(raw, "isOutOfStock"),
		RatingScore:     NumberOf(raw, "ratingScore"),
		TotalSold:       NumberOf(raw, "totalSoldOut"),
		Category:        StringOf(category, "name"),
		CategorySlug:    StringOf(category, "slug"),
		Subcategory:     StringOf(sub, "name"),
		SubcategorySlug: StringOf(sub, "slug"),
		Brand:           StringOf(brand, "name"),
		BrandSlug:       StringOf(brand, "slug"),
		ImageURL:        StringOf(image, "url"),
		Tags:            joinTags(ListOf(raw, "tags")),
	}
}

func joinTags(tags []any) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if obj, ok := t.(map[string]any); ok {
			names = append(names, StringOf(obj, "name"))
		}
	}
	return strings.Join(names, ", ")
}

// ObjectOf returns m[key] when it is a JSON object, nil otherwise.
// A nil map is safe to pass to the other lookups.
func ObjectOf(m map[string]any, key string) map[string]any {
	obj, _ := m[key].(map[string]any)
	return obj
}

// ListOf returns m[key] when it is a JSON array, nil otherwise.
func ListOf(m map[string]any, key string) []any {
	list, _ := m[key].([]any)
	return list
}

// StringOf returns m[key] rendered as a string. Numbers keep their
// shortest form so numeric ids survive.
func StringOf(m map[string]any, key string) string {
	return stringValue(m[key])
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// NumberOf returns m[key] as a float64, 0 when absent or not numeric.
func NumberOf(m map[string]any, key string) float64 {
	switch x := m[key].(type) {
	case float64:
		return x
	case json.Number:
		f, _ := x.Float64()
		return f
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// BoolOf returns m[key] as a bool, false when absent or not boolean.
func BoolOf(m map[string]any, key string) bool {
	switch x := m[key].(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return false
	}
}

// IDOf extracts the dedup key of an arbitrary decoded JSON document.
func IDOf(doc map[string]any) string {
	return StringOf(doc, "id")
}
