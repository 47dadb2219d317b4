package crawl

import "shopcrawl/internal/model"

// StopReason records why pagination ended.
type StopReason string

const (
	StopFetchFailed  StopReason = "fetch_failed"
	StopEmptyPage    StopReason = "empty_page"
	StopTotalReached StopReason = "total_reached"
	StopTotalPages   StopReason = "total_pages"
	StopMaxPages     StopReason = "max_pages"
)

// isLastPage evaluates the pagination metadata of a non-empty page.
// data.total (with data.pageSize, defaulting to defaultPageSize) takes
// precedence over meta.totalPages. Without either, pagination continues.
func isLastPage(body map[string]any, page, defaultPageSize int) (StopReason, bool) {
	if data := model.ObjectOf(body, "data"); data != nil {
		if _, ok := data["total"]; ok {
			total := model.NumberOf(data, "total")
			pageSize := model.NumberOf(data, "pageSize")
			if pageSize <= 0 {
				pageSize = float64(defaultPageSize)
			}
			if float64(page)*pageSize >= total {
				return StopTotalReached, true
			}
			return "", false
		}
	}
	if meta := model.ObjectOf(body, "meta"); meta != nil {
		if _, ok := meta["totalPages"]; ok {
			if float64(page) >= model.NumberOf(meta, "totalPages") {
				return StopTotalPages, true
			}
		}
	}
	return "", false
}
