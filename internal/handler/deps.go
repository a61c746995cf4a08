package handler

import (
	"context"
	"time"

	"agrimarket/internal/integration"
	"agrimarket/internal/model"
	"agrimarket/internal/service"
)

type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

type UserService interface {
	Get(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, in service.UpdateUserInput) (*model.User, error)
}

type StatsService interface {
	ForUser(ctx context.Context, userID, userType string) (*model.UserStats, error)
}

type ProductService interface {
	Create(ctx context.Context, farmerID string, in service.ProductInput) (*model.Product, error)
	List(ctx context.Context, f service.ProductFilter) ([]model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Update(ctx context.Context, id, farmerID string, in service.ProductInput) (*model.Product, error)
	Delete(ctx context.Context, id, farmerID string) error
}

type OrderService interface {
	Create(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
	ListByUser(ctx context.Context, userID, userType string) ([]model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.Order, error)
}

type OrderRequestService interface {
	Create(ctx context.Context, in service.CreateOrderRequestInput) (*model.OrderRequest, error)
	ListForBuyer(ctx context.Context, buyerID string) ([]model.OrderRequest, error)
	ListOpenForFarmer(ctx context.Context, today time.Time) ([]model.OrderRequest, error)
}

type ApplicationService interface {
	Submit(ctx context.Context, in service.SubmitApplicationInput) (*model.OrderApplication, error)
	Decide(ctx context.Context, applicationID, buyerID, status string) (*model.OrderApplication, error)
	ListByFarmer(ctx context.Context, farmerID string) ([]model.OrderApplication, error)
}

type ScheduleService interface {
	Create(ctx context.Context, in service.CreateScheduleInput) (*model.OrderSchedule, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]model.OrderSchedule, error)
	Due(ctx context.Context, now time.Time) ([]model.OrderSchedule, error)
	Update(ctx context.Context, id, buyerID string, in service.UpdateScheduleInput) (*model.OrderSchedule, error)
	Delete(ctx context.Context, id, buyerID string) error
	Process(ctx context.Context, now time.Time, force bool) (*service.ProcessResult, error)
}

type RatingService interface {
	Create(ctx context.Context, in service.CreateRatingInput) (*model.Rating, error)
	ListForUser(ctx context.Context, userID string) ([]model.Rating, error)
}

type WeatherProvider interface {
	Current(ctx context.Context, loc integration.Location) (*integration.Weather, error)
}

type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*integration.Place, error)
}

type ChatProvider interface {
	Ask(ctx context.Context, question string, history []integration.Message) (*integration.Answer, error)
	Schemes(ctx context.Context, state, category string) (*integration.SchemeList, error)
}

type QualityAnalyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) (*integration.QualityReport, error)
}
