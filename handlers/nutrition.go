package handlers

import (
	"net/http"

	"food-marketplace-api/middleware"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// GetCalorieStats sums calories of delivered orders for ?timeframe=daily|weekly|monthly
func (h *Handler) GetCalorieStats(c *gin.Context) {
	tf, err := services.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.Nutrition.Stats(c.Request.Context(), middleware.GetUser(c), tf)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetCalorieLedger returns the per-day calorie ledger of the caller
func (h *Handler) GetCalorieLedger(c *gin.Context) {
	ledger, err := h.Nutrition.Ledger(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"today":   h.Nutrition.Today(),
		"entries": ledger.Entries,
		"total":   ledger.Total,
	})
}

// GetGoGreenSavings reports the environmental savings of the caller's go-green orders
func (h *Handler) GetGoGreenSavings(c *gin.Context) {
	savings, err := h.Nutrition.GoGreenSavings(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, savings)
}
