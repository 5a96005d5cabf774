// Package risk estimates risk profiles and correlation matrices from stored price
// history, caching results for the day they were computed on.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultAnalysisPeriod is the number of trading days sampled when none is configured.
const DefaultAnalysisPeriod = 100

// Asset identifies a ticker and how its prices are sampled.
type Asset struct {
	Ticker    string           `json:"ticker" validate:"required,ticker"`
	AssetType domain.AssetType `json:"asset_type"`
}

// FixedRate is a constant risk-free rate.
type FixedRate float64

// GetRiskFreeRate returns the rate.
func (r FixedRate) GetRiskFreeRate(context.Context) (float64, error) { return float64(r), nil }

// Config configures a Service.
type Config struct {
	// AnalysisPeriod is the sample length in trading days: weekdays for equities,
	// calendar days for crypto.
	AnalysisPeriod int
}

// Service estimates risk profiles and builds portfolios from price history.
type Service struct {
	prices   domain.PriceProvider
	cache    domain.ResultCache
	riskFree domain.RiskFreeRateProvider
	period   int
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a new risk service. cache may be nil to disable caching.
func NewService(
	prices domain.PriceProvider,
	cache domain.ResultCache,
	riskFree domain.RiskFreeRateProvider,
	cfg Config,
	log zerolog.Logger,
) *Service {
	period := cfg.AnalysisPeriod
	if period <= 0 {
		period = DefaultAnalysisPeriod
	}
	return &Service{
		prices:   prices,
		cache:    cache,
		riskFree: riskFree,
		period:   period,
		now:      time.Now,
		log:      log.With().Str("component", "risk_service").Logger(),
	}
}

// RiskFreeRate returns the current risk-free rate.
func (s *Service) RiskFreeRate(ctx context.Context) (float64, error) {
	rate, err := s.riskFree.GetRiskFreeRate(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get risk-free rate: %w", err)
	}
	return rate, nil
}

// Sample loads the analysis window of prices for asset ending today.
func (s *Service) Sample(ctx context.Context, asset Asset) (domain.PriceSample, error) {
	end := s.today()
	start := analysisStart(end, asset.AssetType, s.period)

	points, err := s.prices.GetPrices(ctx, asset.Ticker, start, end)
	if err != nil {
		return domain.PriceSample{}, fmt.Errorf("failed to load prices for %s: %w", asset.Ticker, err)
	}
	return domain.NewPriceSample(asset.Ticker, asset.AssetType, points), nil
}

// RiskProfile estimates the annualized return and volatility of asset.
func (s *Service) RiskProfile(ctx context.Context, asset Asset) (domain.RiskProfile, error) {
	key := s.profileKey(asset)
	var profile domain.RiskProfile
	if s.lookup(key, &profile) {
		return profile, nil
	}

	sample, err := s.Sample(ctx, asset)
	if err != nil {
		return domain.RiskProfile{}, err
	}
	profile, err = portfolio.EstimateRiskProfile(sample)
	if err != nil {
		return domain.RiskProfile{}, err
	}

	s.store(key, profile)
	return profile, nil
}

// Correlation estimates the correlation of two assets over the analysis window.
func (s *Service) Correlation(ctx context.Context, a, b Asset) (float64, error) {
	if a == b {
		return 1, nil
	}
	key := s.correlationKey(a, b)
	var corr float64
	if s.lookup(key, &corr) {
		return corr, nil
	}

	sa, err := s.Sample(ctx, a)
	if err != nil {
		return 0, err
	}
	sb, err := s.Sample(ctx, b)
	if err != nil {
		return 0, err
	}
	corr, err = portfolio.EstimateCorrelation(sa, sb)
	if err != nil {
		return 0, err
	}

	s.store(key, corr)
	return corr, nil
}

// CorrelationMatrix estimates every pairwise correlation of assets concurrently.
func (s *Service) CorrelationMatrix(ctx context.Context, assets []Asset) ([][]float64, error) {
	n := len(assets)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			g.Go(func() error {
				corr, err := s.Correlation(ctx, assets[i], assets[j])
				if err != nil {
					return fmt.Errorf("failed to correlate %s and %s: %w", assets[i].Ticker, assets[j].Ticker, err)
				}
				matrix[i][j] = corr
				matrix[j][i] = corr
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matrix, nil
}

// Portfolio estimates profiles and correlations for assets and builds the portfolio.
func (s *Service) Portfolio(ctx context.Context, assets []Asset, opts portfolio.Options) (*portfolio.Portfolio, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no assets", portfolio.ErrDimensionMismatch)
	}

	rate, err := s.RiskFreeRate(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, len(assets))
	profiles := make([]domain.RiskProfile, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		tickers[i] = asset.Ticker
		g.Go(func() error {
			profile, err := s.RiskProfile(gctx, asset)
			if err != nil {
				return fmt.Errorf("failed to estimate risk profile of %s: %w", asset.Ticker, err)
			}
			profiles[i] = profile
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matrix, err := s.CorrelationMatrix(ctx, assets)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Strs("tickers", tickers).
		Float64("risk_free_rate", rate).
		Msg("Built portfolio")
	return portfolio.New(tickers, profiles, matrix, rate, opts)
}

func (s *Service) lookup(key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(key, dest)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to read cached result")
		return false
	}
	return found
}

func (s *Service) store(key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache result")
	}
}

func (s *Service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) profileKey(a Asset) string {
	return fmt.Sprintf("profile:%s:%s:%d:%s", a.Ticker, a.AssetType, s.period, s.today().Format("2006-01-02"))
}

func (s *Service) correlationKey(a, b Asset) string {
	if b.Ticker < a.Ticker {
		a, b = b, a
	}
	return fmt.Sprintf("correlation:%s:%s:%s:%s:%d:%s",
		a.Ticker, a.AssetType, b.Ticker, b.AssetType, s.period, s.today().Format("2006-01-02"))
}

// analysisStart steps back from end by period trading days: weekdays for
// equities, calendar days for crypto.
func analysisStart(end time.Time, assetType domain.AssetType, period int) time.Time {
	if assetType == domain.AssetTypeCrypto {
		return end.AddDate(0, 0, -period)
	}
	start := end
	for remaining := period; remaining > 0; {
		start = start.AddDate(0, 0, -1)
		if wd := start.Weekday(); wd != time.Saturday && wd != time.Sunday {
			remaining--
		}
	}
	return start
}
