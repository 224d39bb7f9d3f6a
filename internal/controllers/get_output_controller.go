package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zuulview/zuulview/internal/services"
	"github.com/zuulview/zuulview/pkg/domain"
)

type getOutputController struct{ svc services.BuildInfoService }

func NewGetOutputController(svc services.BuildInfoService) *getOutputController {
	return &getOutputController{svc}
}

func (h *getOutputController) Handle(c *gin.Context) {
	tenant := c.Param("tenant")
	uuid := c.Param("uuid")
	rec, state, err := h.svc.GetOutput(c.Request.Context(), tenant, uuid)
	if err != nil {
		status, body := upstreamError(err)
		c.JSON(status, body)
		return
	}
	if state == domain.StateNotAvailable {
		c.JSON(http.StatusNotFound, notAvailable("output"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"buildId":    rec.BuildID,
		"hosts":      rec.Hosts,
		"errorIds":   rec.ErrorIDs,
		"receivedAt": rec.ReceivedAt,
	})
}
