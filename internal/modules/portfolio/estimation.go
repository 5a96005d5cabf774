package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/pkg/formulas"
	"golang.org/x/sync/errgroup"
)

const dateKeyLayout = "2006-01-02"

// EstimateRiskProfile estimates the annualized return and volatility of a price sample
// by moment matching, treating the price as Geometric Brownian Motion.
//
// The drift is the telescoped log return over the whole sample. Each log return is
// scaled by 1/sqrt(dt) so that gaps (weekends, holidays, missing days) contribute in
// proportion to their length. The returned AnnualReturn includes the Ito correction
// vol^2/2.
func EstimateRiskProfile(sample domain.PriceSample) (domain.RiskProfile, error) {
	points := sample.Points()
	if len(points) < 3 {
		return domain.RiskProfile{}, &formulas.SampleSizeError{
			Statistic: fmt.Sprintf("risk profile %s", sample.Ticker),
			Size:      len(points),
			Required:  3,
			OtherSize: -1,
		}
	}
	if err := checkPrices(sample.Ticker, points); err != nil {
		return domain.RiskProfile{}, err
	}

	period := sample.AssetType.TradingPeriod()
	modReturns := scaledLogReturns(points, sample.AssetType)
	returns := float64(len(modReturns))

	drift := math.Log(points[len(points)-1].Close/points[0].Close) / (period * returns)
	modDrift := drift * math.Sqrt(period)

	variance := 0.0
	for _, r := range modReturns {
		variance += (r - modDrift) * (r - modDrift) / (returns - 1)
	}
	vol := math.Sqrt(variance)

	return domain.RiskProfile{
		AnnualReturn:     drift + 0.5*vol*vol,
		AnnualVolatility: vol,
	}, nil
}

// EstimateCorrelation estimates the correlation of two price samples from their scaled
// log returns over the dates both samples share.
func EstimateCorrelation(a, b domain.PriceSample) (float64, error) {
	alignedA, alignedB := intersect(a, b)
	if len(alignedA) < 3 {
		return 0, &formulas.SampleSizeError{
			Statistic: fmt.Sprintf("correlation %s/%s", a.Ticker, b.Ticker),
			Size:      len(alignedA),
			Required:  3,
			OtherSize: -1,
		}
	}
	if err := checkPrices(a.Ticker, alignedA); err != nil {
		return 0, err
	}
	if err := checkPrices(b.Ticker, alignedB); err != nil {
		return 0, err
	}

	corr, err := formulas.Correlation(
		scaledLogReturns(alignedA, a.AssetType),
		scaledLogReturns(alignedB, b.AssetType),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to correlate %s and %s: %w", a.Ticker, b.Ticker, err)
	}
	return corr, nil
}

// NewFromSamples estimates risk profiles and the correlation matrix from chronological
// price samples, then builds the portfolio. Profiles and pairwise correlations are
// estimated concurrently.
func NewFromSamples(ctx context.Context, samples []domain.PriceSample, riskFreeRate float64, opts Options) (*Portfolio, error) {
	n := len(samples)
	tickers := make([]string, n)
	for i, s := range samples {
		tickers[i] = s.Ticker
	}

	profiles := make([]domain.RiskProfile, n)
	correlation := make([][]float64, n)
	for i := range correlation {
		correlation[i] = make([]float64, n)
		correlation[i][i] = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range samples {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			profile, err := EstimateRiskProfile(samples[i])
			if err != nil {
				return fmt.Errorf("failed to estimate risk profile: %w", err)
			}
			profiles[i] = profile
			return nil
		})
		for j := i + 1; j < n; j++ {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				corr, err := EstimateCorrelation(samples[i], samples[j])
				if err != nil {
					return fmt.Errorf("failed to estimate correlation: %w", err)
				}
				correlation[i][j] = corr
				correlation[j][i] = corr
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return New(tickers, profiles, correlation, riskFreeRate, opts)
}

// scaledLogReturns returns ln(P_t/P_{t-1}) / sqrt(dt * period) for consecutive points.
func scaledLogReturns(points []domain.PricePoint, assetType domain.AssetType) []float64 {
	period := assetType.TradingPeriod()
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		dt := float64(elapsedDays(points[i-1].Date, points[i].Date, assetType))
		out = append(out, math.Log(points[i].Close/points[i-1].Close)/math.Sqrt(dt*period))
	}
	return out
}

// elapsedDays counts trading days from a to b: calendar days for crypto, weekdays for
// equities. The result is at least one.
func elapsedDays(a, b time.Time, assetType domain.AssetType) int {
	a = truncateDay(a)
	b = truncateDay(b)
	if assetType == domain.AssetTypeCrypto {
		days := int(b.Sub(a).Hours() / 24)
		return max(days, 1)
	}

	days := 0
	for d := a.AddDate(0, 0, 1); !d.After(b); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return max(days, 1)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// intersect returns the points of a and b that fall on the same calendar day,
// earliest first.
func intersect(a, b domain.PriceSample) ([]domain.PricePoint, []domain.PricePoint) {
	byDate := make(map[string]domain.PricePoint, b.Len())
	for _, p := range b.Points() {
		byDate[p.Date.Format(dateKeyLayout)] = p
	}

	var outA, outB []domain.PricePoint
	for _, p := range a.Points() {
		if match, ok := byDate[p.Date.Format(dateKeyLayout)]; ok {
			outA = append(outA, p)
			outB = append(outB, match)
		}
	}
	return outA, outB
}

func checkPrices(ticker string, points []domain.PricePoint) error {
	for _, p := range points {
		if p.Close <= 0 || math.IsNaN(p.Close) {
			return fmt.Errorf("%s: non-positive close %v on %s", ticker, p.Close, p.Date.Format(dateKeyLayout))
		}
	}
	return nil
}
