package dataapi

import (
	"context"
	"net/url"

	"github.com/monpham/mcp-homecast/internal/domain"
)

type coingeckoSimplePrice struct {
	Bitcoin struct {
		USD          float64 `json:"usd"`
		VND          float64 `json:"vnd"`
		USD24hChange float64 `json:"usd_24h_change"`
	} `json:"bitcoin"`
}

// BitcoinPrice fetches the current Bitcoin price in USD and VND with the
// 24-hour change.
func (c *Client) BitcoinPrice(ctx context.Context) (*domain.CryptoReport, error) {
	params := url.Values{}
	params.Set("ids", "bitcoin")
	params.Set("vs_currencies", "usd,vnd")
	params.Set("include_24hr_change", "true")

	var payload coingeckoSimplePrice
	if err := c.getJSON(ctx, c.feeds, c.cryptoURL, params, &payload); err != nil {
		return nil, upstreamError("crypto price feed", err)
	}

	return &domain.CryptoReport{
		Timestamp: c.timestamp(),
		PriceUSD:  payload.Bitcoin.USD,
		PriceVND:  payload.Bitcoin.VND,
		Change24h: payload.Bitcoin.USD24hChange,
	}, nil
}
