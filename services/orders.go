package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"food-marketplace-api/feed"
	"food-marketplace-api/models"
	"food-marketplace-api/queue"
	"food-marketplace-api/statemachine"
	"food-marketplace-api/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	userOrdersLimit  = 50
	ownerOrdersLimit = 200
)

// ConsumptionRecorder adds calories to a user's ledger.
type ConsumptionRecorder interface {
	RecordConsumption(ctx context.Context, userID string, calories int, date string) error
}

// LedgerRetryMessage is published to queue.QueueLedgerRetry when the calorie
// ledger could not be updated after an order was placed.
type LedgerRetryMessage struct {
	OrderID  string `json:"order_id"`
	UserID   string `json:"user_id"`
	Calories int    `json:"calories"`
	Date     string `json:"date"`
}

// CartItem is one line of a cart as submitted by a customer.
type CartItem struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1,max=100"`
}

// PlaceOrderResult reports a placed order. LedgerErr is set when the order was
// stored but the calorie ledger update failed; the update has then been queued
// for retry when a broker is configured.
type PlaceOrderResult struct {
	OrderID   string        `json:"order_id"`
	Order     *models.Order `json:"order"`
	LedgerErr error         `json:"-"`
}

// OrderSummary aggregates a list of orders for the admin dashboard.
type OrderSummary struct {
	Count            int                        `json:"count"`
	ByStatus         map[models.OrderStatus]int `json:"by_status"`
	DeliveredRevenue decimal.Decimal            `json:"delivered_revenue"`
}

// OrderService materializes orders from carts and drives their status.
type OrderService struct {
	store     *store.Storage
	nutrition ConsumptionRecorder
	broker    queue.Broker
	hub       *feed.Hub[[]models.Order]
	logger    *zap.SugaredLogger
	loc       *time.Location
	now       func() time.Time
}

// NewOrderService builds the order processor. broker may be nil, in which case
// failed ledger updates are only reported to the caller.
func NewOrderService(st *store.Storage, nutrition ConsumptionRecorder, broker queue.Broker, loc *time.Location, logger *zap.SugaredLogger) *OrderService {
	if loc == nil {
		loc = time.Local
	}
	return &OrderService{
		store:     st,
		nutrition: nutrition,
		broker:    broker,
		hub:       feed.NewHub[[]models.Order](),
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// BuildCart snapshots the requested menu items of restaurant into order items.
func BuildCart(restaurant *models.Restaurant, cart []CartItem) ([]models.OrderItem, error) {
	if restaurant == nil {
		return nil, notFound("restaurant not found")
	}
	if !restaurant.IsActive {
		return nil, invalid("restaurant is not accepting orders")
	}
	if len(cart) == 0 {
		return nil, invalid("order must contain at least one item")
	}

	items := make([]models.OrderItem, 0, len(cart))
	for _, line := range cart {
		if err := validateStruct(line); err != nil {
			return nil, err
		}
		menuItem, ok := restaurant.FindMenuItem(line.MenuItemID)
		if !ok {
			return nil, notFound("menu item " + line.MenuItemID + " not found")
		}
		if !menuItem.IsAvailable {
			return nil, invalid(menuItem.Name + " is not available")
		}
		items = append(items, models.OrderItem{
			MenuItemID: menuItem.ID,
			Name:       menuItem.Name,
			Category:   menuItem.Category,
			Image:      menuItem.Image,
			Price:      menuItem.Price,
			Calories:   menuItem.Calories,
			Quantity:   line.Quantity,
		})
	}
	return items, nil
}

// ComputeTotals returns Σ price×quantity and Σ calories×quantity over items.
func ComputeTotals(items []models.OrderItem) (decimal.Decimal, int) {
	total := decimal.Zero
	calories := 0
	for _, item := range items {
		total = total.Add(item.LineTotal())
		calories += item.LineCalories()
	}
	return total, calories
}

// PlaceOrder stores a pending order for user and then adds its calories to the
// user's ledger for the current date. A ledger failure does not undo the order.
func (s *OrderService) PlaceOrder(ctx context.Context, user *models.User, restaurant *models.Restaurant, items []models.OrderItem, deliveryAddress string) (PlaceOrderResult, error) {
	if user == nil {
		return PlaceOrderResult{}, unauthenticated("you must be signed in to place an order")
	}
	if restaurant == nil {
		return PlaceOrderResult{}, notFound("restaurant not found")
	}
	if len(items) == 0 {
		return PlaceOrderResult{}, invalid("order must contain at least one item")
	}
	if deliveryAddress == "" {
		deliveryAddress = user.Address
	}
	if deliveryAddress == "" {
		return PlaceOrderResult{}, invalid("delivery address is required")
	}

	snapshot := make([]models.OrderItem, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return PlaceOrderResult{}, invalid("quantity must be at least 1")
		}
		if item.Price.IsNegative() {
			return PlaceOrderResult{}, invalid("price cannot be negative")
		}
		if item.Calories < 0 {
			return PlaceOrderResult{}, invalid("calories cannot be negative")
		}
		item.ID = 0
		item.OrderID = ""
		snapshot[i] = item
	}
	totalPrice, totalCalories := ComputeTotals(snapshot)

	order := &models.Order{
		RestaurantID:    restaurant.ID,
		RestaurantName:  restaurant.Name,
		UserID:          user.ID,
		UserName:        user.Name,
		UserEmail:       user.Email,
		Items:           snapshot,
		TotalPrice:      totalPrice,
		TotalCalories:   totalCalories,
		Status:          models.StatusPending,
		DeliveryAddress: deliveryAddress,
		CreatedAt:       s.now(),
	}
	if err := s.store.Orders.Create(ctx, order); err != nil {
		return PlaceOrderResult{}, storeError(err, "restaurant not found", "failed to place order")
	}
	s.logger.Infow("order placed", "order_id", order.ID, "user_id", user.ID, "restaurant_id", restaurant.ID,
		"total_price", order.TotalPrice.String(), "total_calories", order.TotalCalories)

	result := PlaceOrderResult{OrderID: order.ID, Order: order}
	date := DateKey(order.CreatedAt, s.loc)
	if err := s.nutrition.RecordConsumption(ctx, user.ID, totalCalories, date); err != nil {
		s.logger.Warnw("failed to update calorie ledger", "order_id", order.ID, "user_id", user.ID, "error", err)
		result.LedgerErr = err
		s.queueLedgerRetry(ctx, LedgerRetryMessage{
			OrderID:  order.ID,
			UserID:   user.ID,
			Calories: totalCalories,
			Date:     date,
		})
	} else {
		user.TotalCaloriesConsumed += totalCalories
		if user.CalorieTracking == nil {
			user.CalorieTracking = make(map[string]int)
		}
		user.CalorieTracking[date] += totalCalories
	}

	s.publishOrders(ctx, order)
	return result, nil
}

func (s *OrderService) queueLedgerRetry(ctx context.Context, msg LedgerRetryMessage) {
	if s.broker == nil {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorw("failed to marshal ledger retry", "order_id", msg.OrderID, "error", err)
		return
	}
	if err := s.broker.Publish(ctx, queue.QueueLedgerRetry, body); err != nil {
		s.logger.Errorw("failed to queue ledger retry", "order_id", msg.OrderID, "error", err)
	}
}

// UpdateOrderStatus moves the order to status if the state machine allows it.
// Only the restaurant's owner or an admin may change an order's status.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor *models.User, orderID string, status models.OrderStatus) (*models.Order, error) {
	if actor == nil {
		return nil, unauthenticated("you must be signed in to update an order")
	}
	if !status.IsValid() {
		return nil, invalid("unknown order status " + string(status))
	}

	err := store.RetryOnConflict(ctx, MaxWriteAttempts, func() error {
		order, err := s.store.Orders.GetByID(ctx, orderID)
		if err != nil {
			return storeError(err, "order not found", "failed to load order")
		}
		if err := s.checkRestaurantAccess(ctx, actor, order.RestaurantID); err != nil {
			return err
		}
		if err := statemachine.CanTransition(order.Status, status); err != nil {
			return &Error{Kind: KindInvalidTransition, Message: err.Error()}
		}
		return s.store.Orders.UpdateStatus(ctx, order.ID, order.Status, status, actor.ID)
	})
	if err != nil {
		return nil, storeError(err, "order not found", "failed to update order status")
	}

	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "order not found", "failed to load order")
	}
	s.logger.Infow("order status updated", "order_id", order.ID, "status", order.Status, "by", actor.ID)
	s.publishOrders(ctx, order)
	return order, nil
}

// checkRestaurantAccess allows admins, and owners of the restaurant while it exists.
func (s *OrderService) checkRestaurantAccess(ctx context.Context, actor *models.User, restaurantID string) error {
	if actor.IsAdmin() {
		return nil
	}
	restaurant, err := s.store.Restaurants.GetByID(ctx, restaurantID)
	if errors.Is(err, store.ErrNotFound) {
		return forbidden("only the restaurant owner or an admin can update this order")
	}
	if err != nil {
		return storeError(err, "restaurant not found", "failed to load restaurant")
	}
	if !restaurant.IsOwnedBy(actor) {
		return forbidden("only the restaurant owner or an admin can update this order")
	}
	return nil
}

// GetOrder returns the order with its status history. It is visible to the
// customer who placed it, the restaurant owner and admins.
func (s *OrderService) GetOrder(ctx context.Context, actor *models.User, orderID string) (*models.Order, error) {
	if actor == nil {
		return nil, unauthenticated("you must be signed in to view an order")
	}
	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "order not found", "failed to load order")
	}
	if order.UserID == actor.ID {
		return order, nil
	}
	if err := s.checkRestaurantAccess(ctx, actor, order.RestaurantID); err != nil {
		return nil, forbidden("you cannot view this order")
	}
	return order, nil
}

// UserOrders returns the user's most recent orders, newest first.
func (s *OrderService) UserOrders(ctx context.Context, user *models.User) ([]models.Order, error) {
	if user == nil {
		return nil, unauthenticated("you must be signed in to view your orders")
	}
	return s.listOrders(ctx, store.OrderFilter{UserID: user.ID, Limit: userOrdersLimit})
}

// RestaurantOrders returns orders placed at the owner's restaurants, optionally
// narrowed to one of them.
func (s *OrderService) RestaurantOrders(ctx context.Context, owner *models.User, restaurantID string, status models.OrderStatus) ([]models.Order, error) {
	if owner == nil {
		return nil, unauthenticated("you must be signed in to view restaurant orders")
	}
	if status != "" && !status.IsValid() {
		return nil, invalid("unknown order status " + string(status))
	}
	ids, err := s.ownedRestaurantIDs(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if restaurantID != "" {
		if !containsID(ids, restaurantID) && !owner.IsAdmin() {
			return nil, forbidden("you do not own this restaurant")
		}
		ids = []string{restaurantID}
	}
	return s.listOrders(ctx, store.OrderFilter{RestaurantIDs: ids, Status: status, Limit: ownerOrdersLimit})
}

// AllOrders returns every order matching status, for admins.
func (s *OrderService) AllOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, invalid("unknown order status " + string(status))
	}
	return s.listOrders(ctx, store.OrderFilter{Status: status})
}

func (s *OrderService) listOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	orders, err := s.store.Orders.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "orders not found", "failed to list orders")
	}
	return orders, nil
}

func (s *OrderService) ownedRestaurantIDs(ctx context.Context, ownerID string) ([]string, error) {
	restaurants, err := s.store.Restaurants.List(ctx, store.RestaurantFilter{OwnerID: ownerID})
	if err != nil {
		return nil, storeError(err, "restaurants not found", "failed to list restaurants")
	}
	ids := make([]string, len(restaurants))
	for i, r := range restaurants {
		ids[i] = r.ID
	}
	return ids, nil
}

// Summarize counts orders per status and sums the revenue of delivered ones.
func Summarize(orders []models.Order) OrderSummary {
	summary := OrderSummary{
		Count:            len(orders),
		ByStatus:         make(map[models.OrderStatus]int, len(models.AllOrderStatuses)),
		DeliveredRevenue: decimal.Zero,
	}
	for _, s := range models.AllOrderStatuses {
		summary.ByStatus[s] = 0
	}
	for _, o := range orders {
		summary.ByStatus[o.Status]++
		if o.Status == models.StatusDelivered {
			summary.DeliveredRevenue = summary.DeliveredRevenue.Add(o.TotalPrice)
		}
	}
	return summary
}

// SubscribeToOrders calls fn with the user's orders now and after each change to
// one of them until the returned func is called.
func (s *OrderService) SubscribeToOrders(ctx context.Context, userID string, fn func([]models.Order)) (func(), error) {
	if userID == "" {
		return nil, unauthenticated("you must be signed in to follow your orders")
	}
	snapshot, err := s.listOrders(ctx, store.OrderFilter{UserID: userID, Limit: userOrdersLimit})
	if err != nil {
		return nil, err
	}
	unsubscribe := s.hub.Subscribe(userTopic(userID), fn)
	fn(snapshot)
	return unsubscribe, nil
}

// SubscribeToRestaurantOrders is the owner-side feed: fn receives the orders of
// every restaurant owned by ownerID.
func (s *OrderService) SubscribeToRestaurantOrders(ctx context.Context, ownerID string, fn func([]models.Order)) (func(), error) {
	if ownerID == "" {
		return nil, unauthenticated("you must be signed in to follow restaurant orders")
	}
	snapshot, err := s.ownerSnapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	unsubscribe := s.hub.Subscribe(ownerTopic(ownerID), fn)
	fn(snapshot)
	return unsubscribe, nil
}

func (s *OrderService) ownerSnapshot(ctx context.Context, ownerID string) ([]models.Order, error) {
	ids, err := s.ownedRestaurantIDs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.listOrders(ctx, store.OrderFilter{RestaurantIDs: ids, Limit: ownerOrdersLimit})
}

func (s *OrderService) publishOrders(ctx context.Context, order *models.Order) {
	if topic := userTopic(order.UserID); s.hub.HasSubscribers(topic) {
		orders, err := s.store.Orders.List(ctx, store.OrderFilter{UserID: order.UserID, Limit: userOrdersLimit})
		if err != nil {
			s.logger.Warnw("failed to publish order snapshot", "user_id", order.UserID, "error", err)
		} else {
			s.hub.Publish(topic, orders)
		}
	}

	restaurant, err := s.store.Restaurants.GetByID(ctx, order.RestaurantID)
	if err != nil {
		return
	}
	if topic := ownerTopic(restaurant.OwnerID); s.hub.HasSubscribers(topic) {
		orders, err := s.ownerSnapshot(ctx, restaurant.OwnerID)
		if err != nil {
			s.logger.Warnw("failed to publish owner order snapshot", "owner_id", restaurant.OwnerID, "error", err)
			return
		}
		s.hub.Publish(topic, orders)
	}
}

func userTopic(userID string) string {
	return "orders:user:" + userID
}

func ownerTopic(ownerID string) string {
	return "orders:owner:" + ownerID
}
