package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"food-marketplace-api/models"
	"food-marketplace-api/services"
	"food-marketplace-api/store"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// AdminGetAllOrders returns all orders with a per-status summary (admin only)
func (h *Handler) AdminGetAllOrders(c *gin.Context) {
	orders, err := h.Orders.AllOrders(c.Request.Context(), models.OrderStatus(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}

	summary := services.Summarize(orders)
	c.JSON(http.StatusOK, gin.H{
		"order_summary": summary.ByStatus,
		"total_revenue": summary.DeliveredRevenue,
		"count":         summary.Count,
		"orders":        orders,
	})
}

// AdminGetAllUsers returns all users, optionally filtered by ?role= (admin only)
func (h *Handler) AdminGetAllUsers(c *gin.Context) {
	users, err := h.Accounts.ListUsers(c.Request.Context(), models.UserRole(c.Query("role")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

// AdminGetAllRestaurants returns every restaurant including inactive ones (admin only)
func (h *Handler) AdminGetAllRestaurants(c *gin.Context) {
	restaurants, err := h.Catalog.ListRestaurants(c.Request.Context(), store.RestaurantFilter{})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(restaurants),
		"restaurants": restaurants,
		"by_type":     services.GroupByType(restaurants),
	})
}

// AdminGetTypeStats returns the restaurant count and share per type (admin only)
func (h *Handler) AdminGetTypeStats(c *gin.Context) {
	stats, err := h.Catalog.TypeStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AdminExportOrders streams the orders matching ?status= as an Excel workbook (admin only)
func (h *Handler) AdminExportOrders(c *gin.Context) {
	orders, err := h.Orders.AllOrders(c.Request.Context(), models.OrderStatus(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}

	file, err := buildOrdersWorkbook(orders)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel sheet"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")

	if err := file.Write(c.Writer); err != nil {
		h.Logger.Errorw("failed to write orders export", "error", err)
	}
}

func buildOrdersWorkbook(orders []models.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	headers := []string{
		"ID", "Restaurant", "Customer", "Email", "Status", "Items",
		"TotalPrice", "TotalCalories", "DeliveryAddress", "CreatedAt", "UpdatedAt",
	}
	headerRow := sheet.AddRow()
	for _, h := range headers {
		headerRow.AddCell().SetValue(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.RestaurantName)
		row.AddCell().SetValue(o.UserName)
		row.AddCell().SetValue(o.UserEmail)
		row.AddCell().SetValue(string(o.Status))

		lines := make([]string, len(o.Items))
		for i, item := range o.Items {
			lines[i] = item.Name + " x" + strconv.Itoa(item.Quantity)
		}
		row.AddCell().SetValue(strings.Join(lines, ", "))

		row.AddCell().SetValue(o.TotalPrice.StringFixed(2))
		row.AddCell().SetValue(o.TotalCalories)
		row.AddCell().SetValue(o.DeliveryAddress)
		row.AddCell().SetValue(o.CreatedAt.Format(exportTimeLayout))
		row.AddCell().SetValue(o.UpdatedAt.Format(exportTimeLayout))
	}
	return file, nil
}
