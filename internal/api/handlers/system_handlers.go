package handlers

import (
	"net/http"

	"github.com/captain-yun7/facefalcon-sub000/internal/utils"

	"github.com/gin-gonic/gin"
)

// GetSystemStats gibt CPU-, Speicher- und Batch-Statistiken zurück
func (h *APIHandler) GetSystemStats(c *gin.Context) {
	stats := utils.GetSystemStats(h.analyzer.GetConfig().BatchConcurrency)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// Health ist der Liveness-Endpunkt des Servers. Er prüft keine Dienste.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
