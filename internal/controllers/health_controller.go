package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zuulview/zuulview/pkg/store"
)

type healthController struct{ st store.Store }

func NewHealthController(st store.Store) *healthController {
	return &healthController{st}
}

func (h *healthController) Handle(c *gin.Context) {
	if err := h.st.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
