// Package fakeshop serves a generated catalog with the listing and detail
// endpoints of the storefront API, for offline crawls and tests.
package fakeshop

import (
	"fmt"
	"math/rand"
)

var (
	brands     = []string{"Nature Care", "Hadalabo", "Blackmores", "Kirkland"}
	categories = []string{"Thực phẩm chức năng", "Chăm sóc tóc", "Chăm sóc da"}
	subs       = []string{"Vitamin", "Dầu gội", "Sữa rửa mặt", "Khoáng chất"}
)

var slugs = map[string]string{
	"Nature Care": "nature-care", "Hadalabo": "hadalabo", "Blackmores": "blackmores", "Kirkland": "kirkland",
	"Thực phẩm chức năng": "sp-thuc-pham-chuc-nang", "Chăm sóc tóc": "cham-soc-toc", "Chăm sóc da": "cham-soc-da",
	"Vitamin": "vitamin", "Dầu gội": "dau-goi", "Sữa rửa mặt": "sua-rua-mat", "Khoáng chất": "khoang-chat",
}

// Generate returns n listing items in the storefront's raw shape. The same
// seed always yields the same catalog.
func Generate(n int, seed int64) []map[string]any {
	rng := rand.New(rand.NewSource(seed))
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		brand := brands[rng.Intn(len(brands))]
		cat := categories[rng.Intn(len(categories))]
		sub := subs[rng.Intn(len(subs))]
		listed := float64(50000 + 1000*rng.Intn(900))
		discount := float64(5 * rng.Intn(7))
		items = append(items, map[string]any{
			"id":              fmt.Sprintf("p%04d", i+1),
			"name":            fmt.Sprintf("%s %s %d", brand, sub, i+1),
			"slug":            fmt.Sprintf("san-pham-%04d", i+1),
			"price":           listed * (100 - discount) / 100,
			"listedPrice":     listed,
			"discountPercent": discount,
			"isDiscount":      discount > 0,
			"isOutOfStock":    rng.Intn(10) == 0,
			"ratingScore":     float64(30+rng.Intn(21)) / 10,
			"totalSoldOut":    float64(rng.Intn(5000)),
			"category":        map[string]any{"name": cat, "slug": slugs[cat]},
			"subCategory":     map[string]any{"name": sub, "slug": slugs[sub]},
			"brand":           map[string]any{"name": brand, "slug": slugs[brand]},
			"featuredImage":   fmt.Sprintf("https://cdn.example.com/p%04d.jpg", i+1),
			"tags":            []any{map[string]any{"name": "Hot"}, map[string]any{"name": brand}},
		})
	}
	return items
}

// Detail builds the detail document of item.
func Detail(item map[string]any) map[string]any {
	id, _ := item["id"].(string)
	name, _ := item["name"].(string)
	return map[string]any{
		"id":                 id,
		"name":               name,
		"images":             []any{map[string]any{"url": "https://cdn.example.com/" + id + "-1.jpg"}, map[string]any{"url": "https://cdn.example.com/" + id + "-2.jpg"}},
		"shortDescription":   "Mô tả ngắn " + name,
		"description":        "<p>" + name + "</p><br><p>Chính hãng.</p>",
		"productIngredients": "Vitamin C, Kẽm",
		"productManual":      "Ngày 1 viên",
		"variants":           []any{map[string]any{"name": "Hộp 30 viên"}, map[string]any{"name": "Hộp 60 viên"}},
	}
}
