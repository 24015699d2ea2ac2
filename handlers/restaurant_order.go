package handlers

import (
	"net/http"

	"food-marketplace-api/middleware"
	"food-marketplace-api/models"
	"food-marketplace-api/services"
	"food-marketplace-api/statemachine"

	"github.com/gin-gonic/gin"
)

// GetRestaurantOrders returns orders placed at the caller's restaurants,
// optionally narrowed by ?restaurant_id= and ?status=
func (h *Handler) GetRestaurantOrders(c *gin.Context) {
	orders, err := h.Orders.RestaurantOrders(
		c.Request.Context(),
		middleware.GetUser(c),
		c.Query("restaurant_id"),
		models.OrderStatus(c.Query("status")),
	)
	if err != nil {
		h.respondError(c, err)
		return
	}

	summary := services.Summarize(orders)
	c.JSON(http.StatusOK, gin.H{
		"order_summary": summary.ByStatus,
		"count":         summary.Count,
		"orders":        orders,
	})
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// UpdateOrderStatus moves an order along the lifecycle; restaurant owners and admins only
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.Orders.UpdateOrderStatus(c.Request.Context(), middleware.GetUser(c), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Order status updated to " + string(order.Status),
		"order":             order,
		"valid_next_states": statemachine.ValidTransitionsFrom(order.Status),
	})
}
