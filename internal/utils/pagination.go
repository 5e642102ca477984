package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page is a 1-based page over an in-memory listing
type Page struct {
	Number int
	Size   int
}

// PageFromQuery reads page and limit from the query string. Bad or missing
// values fall back to the first page of defaultSize; limit is capped at maxSize.
func PageFromQuery(c *gin.Context, defaultSize, maxSize int) Page {
	p := Page{Number: 1, Size: defaultSize}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 1 {
		p.Number = n
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		p.Size = n
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

// bounds clamps the page to a listing of n items
func (p Page) bounds(n int) (lo, hi int) {
	lo = (p.Number - 1) * p.Size
	if lo > n {
		lo = n
	}
	hi = lo + p.Size
	if hi > n {
		hi = n
	}
	return lo, hi
}

// pages is never below one, so an empty listing still has a first page
func (p Page) pages(n int) int {
	if n == 0 {
		return 1
	}
	return (n + p.Size - 1) / p.Size
}

// PageMetadata describes where a page sits in the full listing
type PageMetadata struct {
	TotalItems   int `json:"totalItems"`
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// Slice returns the page's items and its metadata
func Slice[T any](items []T, p Page) ([]T, PageMetadata) {
	lo, hi := p.bounds(len(items))
	out := make([]T, hi-lo)
	copy(out, items[lo:hi])
	return out, PageMetadata{
		TotalItems:   len(items),
		CurrentPage:  p.Number,
		TotalPages:   p.pages(len(items)),
		ItemsPerPage: p.Size,
	}
}

// SendPage writes one page of items as {"data", "pagination"}
func SendPage[T any](c *gin.Context, items []T, p Page) {
	data, meta := Slice(items, p)
	c.JSON(http.StatusOK, gin.H{
		"data":       data,
		"pagination": meta,
	})
}

// SendErrorResponse sends a standardized error response
func SendErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}
