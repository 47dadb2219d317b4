package model

import (
	"strconv"
	"strings"
)

// Record is the flat representation of one catalog item.
type Record struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	Price           float64 `json:"price"`
	ListedPrice     float64 `json:"listed_price"`
	DiscountPercent float64 `json:"discount_percent"`
	IsDiscount      bool    `json:"is_discount"`
	IsOutOfStock    bool    `json:"is_out_of_stock"`
	RatingScore     float64 `json:"rating_score"`
	TotalSold       float64 `json:"total_sold"`
	Category        string  `json:"category"`
	CategorySlug    string  `json:"category_slug"`
	Subcategory     string  `json:"subcategory"`
	SubcategorySlug string  `json:"subcategory_slug"`
	Brand           string  `json:"brand"`
	BrandSlug       string  `json:"brand_slug"`
	ImageURL        string  `json:"image_url"`
	Tags            string  `json:"tags"`

	// Detail-page fields, set only by enrichment.
	Images           []string  `json:"images,omitempty"`
	ShortDescription string    `json:"short_description,omitempty"`
	Description      string    `json:"description,omitempty"`
	Ingredients      string    `json:"ingredients,omitempty"`
	Manual           string    `json:"manual,omitempty"`
	Variants         []Variant `json:"variants,omitempty"`
}

// Variant is a product variant as returned by the detail document.
type Variant map[string]any

// Enriched reports whether any detail-page field is set.
func (r Record) Enriched() bool {
	return r.Images != nil || r.Variants != nil ||
		r.ShortDescription != "" || r.Description != "" ||
		r.Ingredients != "" || r.Manual != ""
}

// BaseColumns is the tabular header for normalized records.
var BaseColumns = []string{
	"id", "name", "slug", "price", "listed_price", "discount_percent",
	"is_discount", "is_out_of_stock", "rating_score", "total_sold",
	"category", "category_slug", "subcategory", "subcategory_slug",
	"brand", "brand_slug", "image_url", "tags",
}

// DetailColumns are appended to the header when a batch carries enrichment.
var DetailColumns = []string{
	"short_description", "description", "ingredients", "manual", "variant_count", "images",
}

// Columns returns the tabular header.
func Columns(enriched bool) []string {
	if !enriched {
		return append([]string(nil), BaseColumns...)
	}
	out := make([]string, 0, len(BaseColumns)+len(DetailColumns))
	out = append(out, BaseColumns...)
	return append(out, DetailColumns...)
}

// AnyEnriched reports whether at least one record carries detail fields.
func AnyEnriched(recs []Record) bool {
	for _, r := range recs {
		if r.Enriched() {
			return true
		}
	}
	return false
}

var htmlStripper = strings.NewReplacer("<p>", "", "</p>", " ", "<br>", " ")

// Row projects the record onto the tabular columns, keyed by column name.
func (r Record) Row() map[string]string {
	row := map[string]string{
		"id":               r.ID,
		"name":             r.Name,
		"slug":             r.Slug,
		"price":            FormatNumber(r.Price),
		"listed_price":     FormatNumber(r.ListedPrice),
		"discount_percent": FormatNumber(r.DiscountPercent),
		"is_discount":      strconv.FormatBool(r.IsDiscount),
		"is_out_of_stock":  strconv.FormatBool(r.IsOutOfStock),
		"rating_score":     FormatNumber(r.RatingScore),
		"total_sold":       FormatNumber(r.TotalSold),
		"category":         r.Category,
		"category_slug":    r.CategorySlug,
		"subcategory":      r.Subcategory,
		"subcategory_slug": r.SubcategorySlug,
		"brand":            r.Brand,
		"brand_slug":       r.BrandSlug,
		"image_url":        r.ImageURL,
		"tags":             r.Tags,
	}
	if r.Enriched() {
		row["short_description"] = r.ShortDescription
		row["description"] = htmlStripper.Replace(r.Description)
		row["ingredients"] = r.Ingredients
		row["manual"] = r.Manual
		row["variant_count"] = strconv.Itoa(len(r.Variants))
		row["images"] = strings.Join(r.Images, ", ")
	}
	return row
}

// FormatNumber renders f without trailing zeros or exponent.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
