package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JC-Coder/w-wire-api-test/internal/cache"
)

const (
	ratesCacheKey = "exchange_rates"
	ratesCacheTTL = 30 * time.Minute
)

var ErrUnknownCurrency = errors.New("unknown currency code")

// ExchangeRates is a USD-based rate table from openexchangerates.
type ExchangeRates struct {
	Timestamp int64              `json:"timestamp"`
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
}

// Conversion is the result of converting an amount between two currencies.
type Conversion struct {
	Amount       float64 `json:"amount"`
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Rate         float64 `json:"rate"`
	Result       float64 `json:"result"`
}

type Service struct {
	cache      cache.Cache
	httpClient *http.Client
	appID      string
	baseURL    string
}

func NewService(ratesCache cache.Cache, appID, baseURL string) *Service {
	return &Service{
		cache:      ratesCache,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		appID:      appID,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CurrentRates returns the cached rate table, refreshing it from the
// exchange API when the cached copy has expired.
func (s *Service) CurrentRates(ctx context.Context) (ExchangeRates, error) {
	var cached ExchangeRates
	found, err := s.cache.Get(ctx, ratesCacheKey, &cached)
	if err == nil && found {
		return cached, nil
	}

	rates, err := s.fetchRates(ctx)
	if err != nil {
		return ExchangeRates{}, err
	}

	// Cache failures only cost us a refetch on the next call.
	_ = s.cache.Set(ctx, ratesCacheKey, rates, ratesCacheTTL)

	return rates, nil
}

func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (Conversion, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	rates, err := s.CurrentRates(ctx)
	if err != nil {
		return Conversion{}, err
	}

	fromRate, ok := rates.Rates[from]
	if !ok || fromRate == 0 {
		return Conversion{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := rates.Rates[to]
	if !ok {
		return Conversion{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	rate := toRate / fromRate

	return Conversion{
		Amount:       amount,
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		Result:       amount * rate,
	}, nil
}

func (s *Service) fetchRates(ctx context.Context) (ExchangeRates, error) {
	endpoint := fmt.Sprintf("%s/latest.json?%s", s.baseURL, url.Values{"app_id": {s.appID}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ExchangeRates{}, fmt.Errorf("build rates request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ExchangeRates{}, fmt.Errorf("fetch exchange rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExchangeRates{}, fmt.Errorf("exchange rates api returned status %d", resp.StatusCode)
	}

	var rates ExchangeRates
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return ExchangeRates{}, fmt.Errorf("decode exchange rates: %w", err)
	}
	if len(rates.Rates) == 0 {
		return ExchangeRates{}, errors.New("exchange rates api returned no rates")
	}

	return rates, nil
}
