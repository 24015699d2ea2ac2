package handlers

import (
	"net/http"

	"food-marketplace-api/middleware"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// ── Restaurant Management ────────────────────────────────────────────────────

// CreateRestaurant registers a restaurant owned by the caller
func (h *Handler) CreateRestaurant(c *gin.Context) {
	var req services.RestaurantInput
	image, done, err := bindPayload(c, &req)
	defer done()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	id, err := h.Catalog.CreateRestaurant(ctx, middleware.GetUser(c), req, image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	restaurant, err := h.Catalog.GetRestaurant(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Restaurant created", "id": id, "restaurant": restaurant})
}

// UpdateRestaurant applies a partial update and optionally replaces the image
func (h *Handler) UpdateRestaurant(c *gin.Context) {
	var patch services.RestaurantPatch
	image, done, err := bindPayload(c, &patch)
	defer done()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.Catalog.UpdateRestaurant(ctx, middleware.GetUser(c), id, patch, image); err != nil {
		h.respondError(c, err)
		return
	}
	restaurant, err := h.Catalog.GetRestaurant(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant updated", "restaurant": restaurant})
}

// DeleteRestaurant removes the restaurant and its images
func (h *Handler) DeleteRestaurant(c *gin.Context) {
	if err := h.Catalog.DeleteRestaurant(c.Request.Context(), middleware.GetUser(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant deleted"})
}

// GetMyRestaurants lists the restaurants owned by the caller
func (h *Handler) GetMyRestaurants(c *gin.Context) {
	restaurants, err := h.Catalog.OwnedRestaurants(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}

// ── Menu Management ─────────────────────────────────────────────────────────

// AddMenuItem adds a new item to the restaurant's menu
func (h *Handler) AddMenuItem(c *gin.Context) {
	var req services.MenuItemInput
	image, done, err := bindPayload(c, &req)
	defer done()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := h.Catalog.AddMenuItem(c.Request.Context(), middleware.GetUser(c), c.Param("id"), req, image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "item": item})
}

// UpdateMenuItem updates a menu item's fields or image
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	var patch services.MenuItemPatch
	image, done, err := bindPayload(c, &patch)
	defer done()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := h.Catalog.UpdateMenuItem(c.Request.Context(), middleware.GetUser(c), c.Param("id"), c.Param("itemId"), patch, image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

// DeleteMenuItem removes an item from the menu
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	if err := h.Catalog.DeleteMenuItem(c.Request.Context(), middleware.GetUser(c), c.Param("id"), c.Param("itemId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted"})
}
