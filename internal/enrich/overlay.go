package enrich

import "shopcrawl/internal/model"

// Overlay copies rec and sets only the whitelisted fields present in doc.
// Absent or null fields leave rec's value untouched.
func Overlay(rec model.Record, doc map[string]any) model.Record {
	out := rec
	out.Images = append([]string(nil), rec.Images...)
	if rec.Images != nil && out.Images == nil {
		out.Images = []string{}
	}
	out.Variants = append([]model.Variant(nil), rec.Variants...)
	if rec.Variants != nil && out.Variants == nil {
		out.Variants = []model.Variant{}
	}

	if list, ok := doc["images"].([]any); ok {
		out.Images = imageURLs(list)
	}
	if s, ok := firstString(doc, "shortDescription", "short_description"); ok {
		out.ShortDescription = s
	}
	if s, ok := firstString(doc, "description"); ok {
		out.Description = s
	}
	if s, ok := firstString(doc, "productIngredients", "ingredients"); ok {
		out.Ingredients = s
	}
	if s, ok := firstString(doc, "productManual", "manual"); ok {
		out.Manual = s
	}
	if list, ok := doc["variants"].([]any); ok {
		out.Variants = variants(list)
	}
	return out
}

func firstString(doc map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := doc[k]; ok && v != nil {
			return model.StringOf(doc, k), true
		}
	}
	return "", false
}

func imageURLs(list []any) []string {
	out := make([]string, 0, len(list))
	for _, it := range list {
		switch x := it.(type) {
		case string:
			out = append(out, x)
		case map[string]any:
			if u := model.StringOf(x, "url"); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func variants(list []any) []model.Variant {
	out := make([]model.Variant, 0, len(list))
	for _, it := range list {
		if obj, ok := it.(map[string]any); ok {
			out = append(out, model.Variant(obj))
		}
	}
	return out
}
