package handlers

import (
	"net/http"

	"food-marketplace-api/middleware"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type PlaceOrderRequest struct {
	RestaurantID    string              `json:"restaurant_id" binding:"required"`
	DeliveryAddress string              `json:"delivery_address"`
	Items           []services.CartItem `json:"items" binding:"required,min=1"`
}

// PlaceOrder snapshots the cart into a new pending order
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	restaurant, err := h.Catalog.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items, err := services.BuildCart(restaurant, req.Items)
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.Orders.PlaceOrder(ctx, middleware.GetUser(c), restaurant, items, req.DeliveryAddress)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"message":  "Order placed successfully",
		"order_id": res.OrderID,
		"order":    res.Order,
	}
	// The order stands even when the calorie ledger could not be updated.
	if res.LedgerErr != nil {
		body["ledger_error"] = services.MessageOf(res.LedgerErr)
	}
	c.JSON(http.StatusCreated, body)
}

// GetMyOrders returns the caller's most recent orders
func (h *Handler) GetMyOrders(c *gin.Context) {
	orders, err := h.Orders.UserOrders(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

// GetOrderDetail returns a single order with its status history
func (h *Handler) GetOrderDetail(c *gin.Context) {
	order, err := h.Orders.GetOrder(c.Request.Context(), middleware.GetUser(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ── Favorites ───────────────────────────────────────────────────────────────

// ToggleFavorite adds or removes a restaurant from the caller's favorites
func (h *Handler) ToggleFavorite(c *gin.Context) {
	user := middleware.GetUser(c)
	favorite, err := h.Favorites.ToggleFavorite(c.Request.Context(), user, c.Param("restaurantId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"favorite":             favorite,
		"favorite_restaurants": user.FavoriteRestaurants,
	})
}

// GetFavorites lists the caller's favorite restaurants
func (h *Handler) GetFavorites(c *gin.Context) {
	restaurants, err := h.Favorites.Favorites(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}

// ── Reviews ─────────────────────────────────────────────────────────────────

type AddReviewRequest struct {
	Rating int    `json:"rating" binding:"required"`
	Text   string `json:"text"`
}

// AddReview rates a restaurant and updates its average
func (h *Handler) AddReview(c *gin.Context) {
	var req AddReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	review, err := h.Reviews.AddReview(c.Request.Context(), middleware.GetUser(c), c.Param("id"), req.Rating, req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Review added", "review": review})
}
