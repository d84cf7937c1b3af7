// Package api exposes the catalog store over HTTP.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bookworm-labs/catalog/models"
	"github.com/bookworm-labs/catalog/store"
)

// Version reported by the health and root endpoints.
const Version = "1.0.0"

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
	defaultTopLimit  = 10
	maxTopLimit      = 50
)

// Handler validates query parameters at the boundary and delegates to the
// store. The store itself assumes validated input; "nothing matched" is
// always a 200 with an empty list, never an error.
type Handler struct {
	store *store.Store
}

// NewHandler creates the API handler over a loaded store.
func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthStatus{
		Status:     "healthy",
		Message:    "catalog API is serving",
		TotalBooks: h.store.Count(),
		Version:    Version,
	})
}

// ListBooks handles GET /api/v1/books.
func (h *Handler) ListBooks(c *gin.Context) {
	page, limit, ok := h.pagination(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.store.List(page, limit))
}

// GetBook handles GET /api/v1/books/:id.
func (h *Handler) GetBook(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book id must be an integer"})
		return
	}
	book, ok := h.store.GetByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	c.JSON(http.StatusOK, book)
}

// SearchBooks handles GET /api/v1/books/search.
func (h *Handler) SearchBooks(c *gin.Context) {
	title := c.Query("title")
	category := c.Query("category")
	if title == "" && category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of title or category is required"})
		return
	}
	page, limit, ok := h.pagination(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.store.Search(title, category, page, limit))
}

// TopRated handles GET /api/v1/books/top-rated.
func (h *Handler) TopRated(c *gin.Context) {
	limit, ok := h.boundedInt(c, "limit", defaultTopLimit, 1, maxTopLimit)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.store.TopRated(limit))
}

// BooksByPriceRange handles GET /api/v1/books/price-range.
func (h *Handler) BooksByPriceRange(c *gin.Context) {
	minPrice, ok := h.priceParam(c, "min_price", 0)
	if !ok {
		return
	}
	maxPrice, ok := h.priceParam(c, "max_price", 100)
	if !ok {
		return
	}
	if minPrice > maxPrice {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_price cannot exceed max_price"})
		return
	}
	page, limit, ok := h.pagination(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.store.ByPriceRange(minPrice, maxPrice, page, limit))
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Categories())
}

// StatsOverview handles GET /api/v1/stats/overview.
func (h *Handler) StatsOverview(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Overview())
}

// StatsCategories handles GET /api/v1/stats/categories.
func (h *Handler) StatsCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.CategoryStats())
}

// Root handles GET /.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Books catalog API",
		"version": Version,
		"health":  "/api/v1/health",
	})
}

func (h *Handler) pagination(c *gin.Context) (page, limit int, ok bool) {
	page, ok = h.boundedInt(c, "page", 1, 1, 0)
	if !ok {
		return 0, 0, false
	}
	limit, ok = h.boundedInt(c, "limit", defaultPageLimit, 1, maxPageLimit)
	if !ok {
		return 0, 0, false
	}
	return page, limit, true
}

// boundedInt parses an integer query parameter with a default, rejecting
// values below min or, when max > 0, above max.
func (h *Handler) boundedInt(c *gin.Context, name string, def, min, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || (max > 0 && value > max) {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is out of range"})
		return 0, false
	}
	return value, true
}

func (h *Handler) priceParam(c *gin.Context, name string, def float64) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative number"})
		return 0, false
	}
	return value, true
}
