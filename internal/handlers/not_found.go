package handlers

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

// NotFoundHandler answers unknown paths with the list of known routes.
type NotFoundHandler struct {
	routes []string
}

func NewNotFoundHandler(routes gin.RoutesInfo) *NotFoundHandler {
	known := make([]string, 0, len(routes))
	for _, r := range routes {
		known = append(known, r.Method+" "+r.Path)
	}
	sort.Strings(known)
	return &NotFoundHandler{routes: known}
}

func (h *NotFoundHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":  fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path),
		"routes": h.routes,
	})
}
