package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/wattflow/backend/internal/aggregation"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/utils"
)

// DataService answers telemetry queries: windowed consumption in exact
// or coarse overview keys, raw power series and the subscription-wide
// consumption sum.
type DataService struct {
	repos  *repository.Factory
	engine *aggregation.Engine
	cfg    *config.AggregationConfig
	logger *utils.Logger
	now    func() time.Time
}

// NewDataService creates a new data service
func NewDataService(repos *repository.Factory, engine *aggregation.Engine, cfg *config.AggregationConfig, logger *utils.Logger) *DataService {
	return &DataService{
		repos:  repos,
		engine: engine,
		cfg:    cfg,
		logger: logger.Named("data_service"),
		now:    time.Now,
	}
}

// EnergyConsumption returns the bucketed consumption of one device for
// the current day, month or year, with exact bucket labels.
func (s *DataService) EnergyConsumption(ctx context.Context, claims *models.UserClaims, deviceID uint, granularity string) ([]aggregation.Bucket, error) {
	return s.energy(ctx, claims, deviceID, granularity, false)
}

// EnergyOverview returns the same consumption figures under coarse
// bucket labels: the day, the month or the year as a whole.
func (s *DataService) EnergyOverview(ctx context.Context, claims *models.UserClaims, deviceID uint, granularity string) ([]aggregation.Bucket, error) {
	return s.energy(ctx, claims, deviceID, granularity, true)
}

func (s *DataService) energy(ctx context.Context, claims *models.UserClaims, deviceID uint, granularity string, overview bool) ([]aggregation.Bucket, error) {
	device, err := s.scopedDevice(ctx, claims, deviceID)
	if err != nil {
		return nil, err
	}

	g := aggregation.ParseGranularity(granularity)
	now := s.now()
	lower := g.LowerBound(now, s.engine.Location())

	points, err := s.repos.Telemetry().QuerySince(ctx, device.SubscriptionID, device.ID, models.AccessorEnergy, lower)
	if err != nil {
		return nil, utils.ErrInternalServer
	}

	return s.engine.Consumption(toAggPoints(points), g, now, overview), nil
}

// PowerSeries returns the raw power readings of one device over the
// configured lookback window, oldest first.
func (s *DataService) PowerSeries(ctx context.Context, claims *models.UserClaims, deviceID uint) ([]models.TelemetryPoint, error) {
	device, err := s.scopedDevice(ctx, claims, deviceID)
	if err != nil {
		return nil, err
	}

	from := s.now().Add(-s.cfg.PowerLookback())
	points, err := s.repos.Telemetry().QuerySince(ctx, device.SubscriptionID, device.ID, models.AccessorPower, from)
	if err != nil {
		return nil, utils.ErrInternalServer
	}
	return points, nil
}

// SubscriptionBucket is one bucket of the subscription-wide series,
// with consumption summed across devices.
type SubscriptionBucket struct {
	Key      string  `json:"key"`
	Consumed float64 `json:"consumed"`
}

// SubscriptionConsumption sums exact-keyed bucketed consumption across
// every device of a subscription.
func (s *DataService) SubscriptionConsumption(ctx context.Context, claims *models.UserClaims, subscriptionID uint, granularity string) ([]SubscriptionBucket, error) {
	if err := scopeSubscription(claims, subscriptionID); err != nil {
		return nil, err
	}

	devices, err := s.repos.Device().ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, utils.ErrInternalServer
	}

	g := aggregation.ParseGranularity(granularity)
	now := s.now()
	lower := g.LowerBound(now, s.engine.Location())

	merged := make(map[string]float64)
	for i := range devices {
		points, err := s.repos.Telemetry().QuerySince(ctx, subscriptionID, devices[i].ID, models.AccessorEnergy, lower)
		if err != nil {
			return nil, utils.ErrInternalServer
		}
		for _, b := range s.engine.Consumption(toAggPoints(points), g, now, false) {
			merged[b.Key] += b.Consumed
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make([]SubscriptionBucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, SubscriptionBucket{Key: k, Consumed: merged[k]})
	}
	return buckets, nil
}

// scopedDevice loads a device and enforces subscription scope.
func (s *DataService) scopedDevice(ctx context.Context, claims *models.UserClaims, deviceID uint) (*models.Device, error) {
	device, err := s.repos.Device().GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, utils.ErrInternalServer
	}
	if err := scopeSubscription(claims, device.SubscriptionID); err != nil {
		return nil, err
	}
	return device, nil
}

func toAggPoints(points []models.TelemetryPoint) []aggregation.Point {
	out := make([]aggregation.Point, len(points))
	for i, p := range points {
		out[i] = aggregation.Point{Time: p.Time, Value: p.Value}
	}
	return out
}
