package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"pennypipe/internal/domain"
	"pennypipe/internal/util"
)

// Alpaca fetches historical trade ticks via the Alpaca market-data SDK. It
// is the only provider that yields true intraday tick data for listed
// symbols, which sharpens daily open/close ordering when a penny stock later
// uplisted.
type Alpaca struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpaca creates an Alpaca client. Missing credentials fail at
// construction; the fetch stage only constructs this client when both are
// configured.
func NewAlpaca(apiKey, apiSecret string) (*Alpaca, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("alpaca: APCA_API_KEY_ID / APCA_API_SECRET_KEY are not set")
	}
	return &Alpaca{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		limiter: util.NewRateLimiter(200, time.Minute),
		log:     slog.Default().With("provider", domain.SourceAlpaca),
	}, nil
}

// FetchTrades returns historical trades for the symbol in [start, end],
// capped to keep a single pull bounded.
func (c *Alpaca) FetchTrades(ctx context.Context, symbol string, start, end time.Time) ([]domain.RawTradeRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	trades, err := c.client.GetTrades(symbol, marketdata.GetTradesRequest{
		Start:      start,
		End:        end,
		TotalLimit: 10000,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetTrades %s: %w", symbol, err)
	}

	records := make([]domain.RawTradeRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, domain.RawTradeRecord{
			Datetime: t.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			Price:    t.Price,
			Volume:   int64(t.Size),
			Source:   domain.SourceAlpaca,
		})
	}
	return records, nil
}
