package dataapi

import (
	"context"
	"encoding/xml"
	"errors"
	"net/url"

	"github.com/monpham/mcp-homecast/internal/domain"
)

type vcbExrateList struct {
	XMLName xml.Name    `xml:"ExrateList"`
	Exrates []vcbExrate `xml:"Exrate"`
}

type vcbExrate struct {
	CurrencyCode string `xml:"CurrencyCode,attr"`
	Buy          string `xml:"Buy,attr"`
	Transfer     string `xml:"Transfer,attr"`
	Sell         string `xml:"Sell,attr"`
}

// USDRate fetches the Vietcombank exchange-rate sheet and extracts the USD
// row. The sheet is XML with one Exrate element per currency.
func (c *Client) USDRate(ctx context.Context) (*domain.ForexReport, error) {
	params := url.Values{}
	params.Set("b", "10")

	body, err := c.getBody(ctx, c.feeds, c.forexURL, params)
	if err != nil {
		return nil, upstreamError("exchange rate feed", err)
	}

	var sheet vcbExrateList
	if err := xml.Unmarshal(body, &sheet); err != nil {
		return nil, upstreamError("exchange rate feed", err)
	}

	for _, rate := range sheet.Exrates {
		if rate.CurrencyCode != "USD" {
			continue
		}
		return &domain.ForexReport{
			Timestamp:   c.timestamp(),
			Bank:        "Vietcombank",
			Currency:    "USD",
			BuyCash:     rate.Buy,
			BuyTransfer: rate.Transfer,
			Sell:        rate.Sell,
		}, nil
	}
	return nil, upstreamError("exchange rate feed", errors.New("USD rate not found"))
}
