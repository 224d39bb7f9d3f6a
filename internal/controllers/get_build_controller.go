package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zuulview/zuulview/internal/services"
)

type getBuildController struct{ svc services.BuildInfoService }

func NewGetBuildController(svc services.BuildInfoService) *getBuildController {
	return &getBuildController{svc}
}

func (h *getBuildController) Handle(c *gin.Context) {
	tenant := c.Param("tenant")
	uuid := c.Param("uuid")
	rec, err := h.svc.GetBuild(c.Request.Context(), tenant, uuid)
	if err != nil {
		status, body := upstreamError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"build":      rec.Build,
		"receivedAt": rec.ReceivedAt,
	})
}
