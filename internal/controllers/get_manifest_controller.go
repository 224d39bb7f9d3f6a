package controllers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/zuulview/zuulview/internal/services"
	"github.com/zuulview/zuulview/pkg/domain"
)

type getManifestController struct{ svc services.BuildInfoService }

func NewGetManifestController(svc services.BuildInfoService) *getManifestController {
	return &getManifestController{svc}
}

func (h *getManifestController) Handle(c *gin.Context) {
	tenant := c.Param("tenant")
	uuid := c.Param("uuid")
	rec, state, err := h.svc.GetManifest(c.Request.Context(), tenant, uuid)
	if err != nil {
		status, body := upstreamError(err)
		c.JSON(status, body)
		return
	}
	switch state {
	case domain.StateNotAvailable:
		c.JSON(http.StatusNotFound, notAvailable("manifest"))
		return
	case domain.StateFailed:
		c.JSON(http.StatusBadGateway, gin.H{"error": "manifest fetch failed"})
		return
	}

	paths := make([]string, 0, len(rec.Index))
	for p := range rec.Index {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	c.JSON(http.StatusOK, gin.H{
		"buildId":    rec.BuildID,
		"manifest":   rec.Manifest,
		"paths":      paths,
		"receivedAt": rec.ReceivedAt,
	})
}
