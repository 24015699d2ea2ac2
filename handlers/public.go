package handlers

import (
	"net/http"
	"strconv"

	"food-marketplace-api/models"
	"food-marketplace-api/statemachine"
	"food-marketplace-api/store"

	"github.com/gin-gonic/gin"
)

// ListRestaurants returns restaurants filtered by type, cuisine, name search and go-green
func (h *Handler) ListRestaurants(c *gin.Context) {
	filter := store.RestaurantFilter{
		Type:       c.Query("type"),
		Cuisine:    c.Query("cuisine"),
		Search:     c.Query("search"),
		ActiveOnly: c.Query("active") != "false",
	}
	if raw := c.Query("go_green"); raw != "" {
		goGreen, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "go_green must be true or false")
			return
		}
		filter.GoGreen = &goGreen
	}

	restaurants, err := h.Catalog.ListRestaurants(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(restaurants),
		"restaurants": restaurants,
	})
}

// GetRestaurant returns a single restaurant with its menu
func (h *Handler) GetRestaurant(c *gin.Context) {
	restaurant, err := h.Catalog.GetRestaurant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": restaurant})
}

// GetMenu returns the menu of a restaurant, optionally by ?category= or ?available=true
func (h *Handler) GetMenu(c *gin.Context) {
	restaurant, err := h.Catalog.GetRestaurant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	category := c.Query("category")
	availableOnly := c.Query("available") == "true"
	items := make([]models.MenuItem, 0, len(restaurant.Menu))
	for _, item := range restaurant.Menu {
		if category != "" && item.Category != category {
			continue
		}
		if availableOnly && !item.IsAvailable {
			continue
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"restaurant": restaurant.Name,
		"count":      len(items),
		"menu":       items,
	})
}

// ListReviews returns a restaurant's reviews, newest first
func (h *Handler) ListReviews(c *gin.Context) {
	reviews, err := h.Reviews.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(reviews), "reviews": reviews})
}

// GetRestaurantTypes returns the type catalogue and go-green factors
func (h *Handler) GetRestaurantTypes(c *gin.Context) {
	types := h.Catalog.Types()
	c.JSON(http.StatusOK, gin.H{
		"types":    types.Types,
		"go_green": types.GoGreen,
	})
}

// GetStateMachineInfo returns the full state machine for informational purposes
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	var terminal []models.OrderStatus
	for _, s := range models.AllOrderStatuses {
		if statemachine.IsTerminal(s) {
			terminal = append(terminal, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"state_machine":   statemachine.GetAllTransitions(),
		"terminal_states": terminal,
		"description":     "Restaurant order lifecycle; transitions are made by the restaurant owner or an admin",
	})
}
