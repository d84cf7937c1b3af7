package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gin engine with all catalog routes and middleware.
func NewRouter(handler *Handler, metrics *Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORS())
	if metrics != nil {
		router.Use(metrics.Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}

	router.GET("/", handler.Root)

	v1 := router.Group("/api/v1")
	v1.GET("/health", handler.Health)

	books := v1.Group("/books")
	books.GET("", handler.ListBooks)
	books.GET("/search", handler.SearchBooks)
	books.GET("/top-rated", handler.TopRated)
	books.GET("/price-range", handler.BooksByPriceRange)
	books.GET("/:id", handler.GetBook)

	v1.GET("/categories", handler.Categories)

	stats := v1.Group("/stats")
	stats.GET("/overview", handler.StatsOverview)
	stats.GET("/categories", handler.StatsCategories)

	return router
}
