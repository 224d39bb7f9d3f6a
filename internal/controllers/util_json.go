package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zuulview/zuulview/internal/transport"
)

// upstreamError maps a fetch failure to a response. Upstream 404s pass
// through as 404; everything else is a bad gateway. The originating URL is
// included for diagnosis.
func upstreamError(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}
	var te *transport.Error
	if errors.As(err, &te) {
		body["url"] = te.URL
		if te.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, body
		}
	}
	return http.StatusBadGateway, body
}

// notAvailable is the response body for a resource that legitimately does
// not exist for the build; it is distinct from an upstream failure.
func notAvailable(resource string) gin.H {
	return gin.H{"error": resource + " not available", "notAvailable": true}
}
