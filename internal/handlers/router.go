package handlers

import (
	"net/http"

	"github.com/alimgiray/sentinel/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Routes bundles what the status API serves.
type Routes struct {
	Health       *HealthHandler
	Contributors *ContributorHandler
	Metrics      http.Handler
	APIToken     string
}

// NewRouter builds the read-only status API.
func NewRouter(routes Routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/health", routes.Health.HealthCheck)
	if routes.Metrics != nil {
		router.GET("/metrics", gin.WrapH(routes.Metrics))
	}

	api := router.Group("/")
	api.Use(middleware.TokenRequired(routes.APIToken))
	{
		api.GET("/contributors", routes.Contributors.ListContributors)
		api.GET("/contributors/:login", routes.Contributors.GetContributor)
		api.GET("/contributors/:login/promotion", routes.Contributors.GetPromotion)
		api.GET("/sentinels/available", routes.Contributors.AvailableSentinels)
	}

	router.NoRoute(NewNotFoundHandler(router.Routes()).NotFound)
	return router
}
