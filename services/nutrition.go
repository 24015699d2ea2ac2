package services

import (
	"context"
	"math"
	"time"

	"food-marketplace-api/models"
	"food-marketplace-api/store"

	"go.uber.org/zap"
)

// DateLayout is the calorie ledger key format.
const DateLayout = "2006-01-02"

// Timeframe selects the window CalorieStats sums over.
type Timeframe string

const (
	Daily   Timeframe = "daily"
	Weekly  Timeframe = "weekly"
	Monthly Timeframe = "monthly"
)

// ParseTimeframe accepts "daily", "weekly" or "monthly"; empty means daily.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "", Daily:
		return Daily, nil
	case Weekly, Monthly:
		return Timeframe(s), nil
	}
	return "", invalid("timeframe must be daily, weekly or monthly")
}

// DateKey is the ledger key of t's calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// WindowStart returns the start of the window containing now: local midnight for
// daily, the most recent Sunday 00:00 for weekly, the first of the month for
// monthly. The location of now decides where days begin.
func WindowStart(tf Timeframe, now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch tf {
	case Weekly:
		return midnight.AddDate(0, 0, -int(midnight.Weekday()))
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	default:
		return midnight
	}
}

// CalorieStats sums the calories of the user's delivered orders created within
// the timeframe window. It reads only the given order snapshots.
func CalorieStats(user *models.User, orders []models.Order, tf Timeframe, now time.Time) int {
	if user == nil {
		return 0
	}
	start := WindowStart(tf, now)
	total := 0
	for _, o := range orders {
		if o.UserID != user.ID || o.Status != models.StatusDelivered {
			continue
		}
		if o.CreatedAt.Before(start) {
			continue
		}
		total += o.TotalCalories
	}
	return total
}

// CalorieReport is the stats endpoint payload.
type CalorieReport struct {
	Timeframe   Timeframe `json:"timeframe"`
	WindowStart time.Time `json:"window_start"`
	Calories    int       `json:"calories"`
}

// Ledger is a user's per-date consumption and its running total.
type Ledger struct {
	Entries map[string]int `json:"entries"`
	Total   int            `json:"total"`
}

// GoGreenSavings estimates what a user's delivered go-green meals saved.
type GoGreenSavings struct {
	TotalGoGreenOrders  int     `json:"total_go_green_orders"`
	TotalMeals          int     `json:"total_meals"`
	CarbonSavedKg       float64 `json:"carbon_saved_kg"`
	PlasticSavedGrams   float64 `json:"plastic_saved_grams"`
	WaterSavedLiters    float64 `json:"water_saved_liters"`
	CarbonKgPerMeal     float64 `json:"carbon_kg_per_meal"`
	PlasticGramsPerMeal float64 `json:"plastic_grams_per_meal"`
	WaterLitersPerMeal  float64 `json:"water_liters_per_meal"`
}

// ComputeGoGreenSavings credits every meal of a delivered order placed at a
// go-green restaurant with the per-meal factors.
func ComputeGoGreenSavings(orders []models.Order, restaurants []models.Restaurant, factors models.GoGreenFactors) GoGreenSavings {
	green := make(map[string]bool, len(restaurants))
	for _, r := range restaurants {
		green[r.ID] = r.IsGoGreen
	}

	savings := GoGreenSavings{
		CarbonKgPerMeal:     factors.CarbonKgPerMeal,
		PlasticGramsPerMeal: factors.PlasticGramsPerMeal,
		WaterLitersPerMeal:  factors.WaterLitersPerMeal,
	}
	for _, o := range orders {
		if o.Status != models.StatusDelivered || !green[o.RestaurantID] {
			continue
		}
		savings.TotalGoGreenOrders++
		for _, item := range o.Items {
			savings.TotalMeals += item.Quantity
		}
	}
	meals := float64(savings.TotalMeals)
	savings.CarbonSavedKg = round(meals*factors.CarbonKgPerMeal, 2)
	savings.PlasticSavedGrams = round(meals*factors.PlasticGramsPerMeal, 0)
	savings.WaterSavedLiters = round(meals*factors.WaterLitersPerMeal, 1)
	return savings
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// NutritionService keeps the per-user calorie ledger.
type NutritionService struct {
	store   *store.Storage
	factors models.GoGreenFactors
	loc     *time.Location
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewNutritionService(st *store.Storage, factors models.GoGreenFactors, loc *time.Location, logger *zap.SugaredLogger) *NutritionService {
	if loc == nil {
		loc = time.Local
	}
	return &NutritionService{
		store:   st,
		factors: factors,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// Location is where calendar days start for the ledger and the stats windows.
func (s *NutritionService) Location() *time.Location {
	return s.loc
}

// Today is the ledger key for the current date.
func (s *NutritionService) Today() string {
	return DateKey(s.now(), s.loc)
}

// RecordConsumption adds calories to the user's entry for date and to the running
// total. It only ever adds.
func (s *NutritionService) RecordConsumption(ctx context.Context, userID string, calories int, date string) error {
	if userID == "" {
		return unauthenticated("a user is required to record consumption")
	}
	if calories < 0 {
		return invalid("calories cannot be negative")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return invalid("date must be formatted as YYYY-MM-DD")
	}
	if err := s.store.Users.AddCalories(ctx, userID, date, calories); err != nil {
		return storeError(err, "user not found", "failed to record consumption")
	}
	return nil
}

// Stats sums the user's delivered order calories for the timeframe.
func (s *NutritionService) Stats(ctx context.Context, user *models.User, tf Timeframe) (CalorieReport, error) {
	if user == nil {
		return CalorieReport{}, unauthenticated("you must be signed in to see calorie stats")
	}
	orders, err := s.store.Orders.List(ctx, store.OrderFilter{UserID: user.ID, Status: models.StatusDelivered})
	if err != nil {
		return CalorieReport{}, storeError(err, "orders not found", "failed to load orders")
	}
	now := s.now().In(s.loc)
	return CalorieReport{
		Timeframe:   tf,
		WindowStart: WindowStart(tf, now),
		Calories:    CalorieStats(user, orders, tf, now),
	}, nil
}

// Ledger returns the user's stored ledger.
func (s *NutritionService) Ledger(ctx context.Context, user *models.User) (Ledger, error) {
	if user == nil {
		return Ledger{}, unauthenticated("you must be signed in to see your calorie ledger")
	}
	stored, err := s.store.Users.GetByID(ctx, user.ID)
	if err != nil {
		return Ledger{}, storeError(err, "user not found", "failed to load calorie ledger")
	}
	return Ledger{Entries: stored.CalorieTracking, Total: stored.TotalCaloriesConsumed}, nil
}

// GoGreenSavings computes the savings of the user's delivered go-green orders.
func (s *NutritionService) GoGreenSavings(ctx context.Context, user *models.User) (GoGreenSavings, error) {
	if user == nil {
		return GoGreenSavings{}, unauthenticated("you must be signed in to see your savings")
	}
	orders, err := s.store.Orders.List(ctx, store.OrderFilter{UserID: user.ID, Status: models.StatusDelivered})
	if err != nil {
		return GoGreenSavings{}, storeError(err, "orders not found", "failed to load orders")
	}
	green := true
	restaurants, err := s.store.Restaurants.List(ctx, store.RestaurantFilter{GoGreen: &green})
	if err != nil {
		return GoGreenSavings{}, storeError(err, "restaurants not found", "failed to load restaurants")
	}
	return ComputeGoGreenSavings(orders, restaurants, s.factors), nil
}
