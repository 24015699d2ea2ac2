package routes

import (
	"food-marketplace-api/handlers"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		// Auth
		public.POST("/auth/register", h.Register)
		public.POST("/auth/login", h.Login)

		// Restaurants, menus & reviews (no auth needed)
		public.GET("/restaurants", h.ListRestaurants)
		public.GET("/restaurants/:id", h.GetRestaurant)
		public.GET("/restaurants/:id/menu", h.GetMenu)
		public.GET("/restaurants/:id/reviews", h.ListReviews)

		// Reference data
		public.GET("/restaurant-types", h.GetRestaurantTypes)
		public.GET("/state-machine", h.GetStateMachineInfo)
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(h.Auth.AuthRequired())
	{
		auth.GET("/profile", h.GetProfile)
		auth.PUT("/profile", h.UpdateProfile)

		// Restaurant management (owner or admin)
		auth.POST("/restaurants", h.CreateRestaurant)
		auth.PUT("/restaurants/:id", h.UpdateRestaurant)
		auth.DELETE("/restaurants/:id", h.DeleteRestaurant)

		// Menu management
		auth.POST("/restaurants/:id/menu", h.AddMenuItem)
		auth.PUT("/restaurants/:id/menu/:itemId", h.UpdateMenuItem)
		auth.DELETE("/restaurants/:id/menu/:itemId", h.DeleteMenuItem)

		// Reviews & favorites
		auth.POST("/restaurants/:id/reviews", h.AddReview)
		auth.POST("/favorites/:restaurantId/toggle", h.ToggleFavorite)
		auth.GET("/favorites", h.GetFavorites)

		// Orders
		auth.POST("/orders", h.PlaceOrder)
		auth.GET("/orders", h.GetMyOrders)
		auth.GET("/orders/:id", h.GetOrderDetail)
		auth.PUT("/orders/:id/status", h.UpdateOrderStatus)

		// Owner dashboard
		auth.GET("/owner/restaurants", h.GetMyRestaurants)
		auth.GET("/owner/orders", h.GetRestaurantOrders)

		// Nutrition
		auth.GET("/nutrition/stats", h.GetCalorieStats)
		auth.GET("/nutrition/ledger", h.GetCalorieLedger)
		auth.GET("/nutrition/go-green", h.GetGoGreenSavings)

		// Live feeds
		auth.GET("/ws/restaurants", h.RestaurantsFeed)
		auth.GET("/ws/orders", h.OrdersFeed)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(h.Auth.AuthRequired(), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/orders", h.AdminGetAllOrders)
		admin.GET("/orders/export", h.AdminExportOrders)
		admin.GET("/users", h.AdminGetAllUsers)
		admin.GET("/restaurants", h.AdminGetAllRestaurants)
		admin.GET("/restaurant-types/stats", h.AdminGetTypeStats)
	}
}
