package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zuulview/zuulview/internal/services"
)

type getBuildsetController struct{ svc services.BuildInfoService }

func NewGetBuildsetController(svc services.BuildInfoService) *getBuildsetController {
	return &getBuildsetController{svc}
}

func (h *getBuildsetController) Handle(c *gin.Context) {
	tenant := c.Param("tenant")
	uuid := c.Param("uuid")
	force := c.Query("force") == "1" || c.Query("force") == "true"
	rec, err := h.svc.GetBuildset(c.Request.Context(), tenant, uuid, force)
	if err != nil {
		status, body := upstreamError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"buildset":   rec.Buildset,
		"receivedAt": rec.ReceivedAt,
	})
}
