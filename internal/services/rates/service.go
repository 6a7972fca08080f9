package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	pkghttp "github.com/scribeline/payment-engine/pkg/http"
	"github.com/scribeline/payment-engine/pkg/observability"
)

// fallbackRates seed the table and keep conversions working when the rate
// source has never been reachable. Units of currency per 1 USD.
var fallbackRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.NewFromFloat(0.92),
	"GBP": decimal.NewFromFloat(0.79),
	"INR": decimal.NewFromFloat(83.50),
	"JPY": decimal.NewFromFloat(148.0),
	"CAD": decimal.NewFromFloat(1.36),
	"AUD": decimal.NewFromFloat(1.52),
	"SGD": decimal.NewFromFloat(1.34),
	"AED": decimal.NewFromFloat(3.67),
	"BDT": decimal.NewFromFloat(117.0),
}

// Service maintains a USD-based exchange rate table and serves conversions
// from memory. Refreshes happen in the background; a failed refresh keeps
// the last good table so callers are never blocked.
type Service struct {
	logger      *zap.Logger
	client      *http.Client
	sourceURL   string
	interval    time.Duration
	mu          sync.RWMutex
	table       map[string]decimal.Decimal
	refreshedAt time.Time
}

var _ ports.CurrencyConverter = (*Service)(nil)

// NewService creates a rate service seeded with the fallback table
func NewService(cfg config.RatesConfig, logger *zap.Logger) *Service {
	table := make(map[string]decimal.Decimal, len(fallbackRates))
	for code, rate := range fallbackRates {
		table[code] = rate
	}

	return &Service{
		logger:    logger,
		client:    pkghttp.NewHTTPClient(pkghttp.RateSourceClientConfig(), cfg.HTTPTimeout),
		sourceURL: cfg.SourceURL,
		interval:  cfg.RefreshInterval,
		table:     table,
	}
}

// sourceResponse matches the open.er-api.com payload shape
type sourceResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// Refresh fetches the rate table from the source and swaps it in. On any
// failure the current table is kept and the error returned for logging.
func (s *Service) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		observability.RecordRateRefresh("failure")
		return fmt.Errorf("rates.Refresh: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		observability.RecordRateRefresh("failure")
		return fmt.Errorf("rates.Refresh: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordRateRefresh("failure")
		return fmt.Errorf("rates.Refresh: source returned %d", resp.StatusCode)
	}

	var payload sourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		observability.RecordRateRefresh("failure")
		return fmt.Errorf("rates.Refresh: decode: %w", err)
	}
	if payload.Result != "success" || len(payload.Rates) == 0 {
		observability.RecordRateRefresh("failure")
		return fmt.Errorf("rates.Refresh: source reported %q with %d rates", payload.Result, len(payload.Rates))
	}

	table := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, rate := range payload.Rates {
		if rate <= 0 {
			continue
		}
		table[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
	table["USD"] = decimal.NewFromInt(1)

	s.mu.Lock()
	s.table = table
	s.refreshedAt = time.Now()
	s.mu.Unlock()

	observability.RecordRateRefresh("success")
	observability.SetRateTableAge(0)
	s.logger.Info("exchange rate table refreshed", zap.Int("currencies", len(table)))
	return nil
}

// Start refreshes once immediately and then on the configured interval until
// the context is canceled
func (s *Service) Start(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial rate refresh failed, serving fallback table", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					s.logger.Warn("rate refresh failed, keeping last good table", zap.Error(err))
				}
				s.mu.RLock()
				refreshedAt := s.refreshedAt
				s.mu.RUnlock()
				if !refreshedAt.IsZero() {
					observability.SetRateTableAge(time.Since(refreshedAt).Seconds())
				}
			}
		}
	}()
}

// Convert converts an amount between currencies. Identity when from == to.
// Cross rates go through USD: rate = table[to] / table[from].
func (s *Service) Convert(amount decimal.Decimal, from, to string) (ports.Conversion, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return ports.Conversion{Amount: amount, Rate: decimal.NewFromInt(1)}, nil
	}

	s.mu.RLock()
	fromRate, fromOK := s.table[from]
	toRate, toOK := s.table[to]
	s.mu.RUnlock()

	if !fromOK || !toOK {
		missing := from
		if fromOK {
			missing = to
		}
		return ports.Conversion{}, domain.NewDomainError(domain.ErrorCodeRateUnavailable,
			"no exchange rate for "+missing)
	}

	rate := toRate.Div(fromRate)
	return ports.Conversion{
		Amount: amount.Mul(rate).Round(2),
		Rate:   rate,
	}, nil
}

// RefreshedAt reports when the table was last replaced from the source.
// Zero means the fallback table is still in use.
func (s *Service) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}
