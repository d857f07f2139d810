package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getHealth godoc
// @Summary Show the status of server.
// @Description Liveness probe, no authentication.
// @Tags root
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getWhoAmI godoc
// @Summary Show the authenticated operator.
// @Tags root
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /whoami [get]
func getWhoAmI(c *gin.Context) {
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"operatorID": opID})
}
