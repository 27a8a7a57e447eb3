package dataapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/monpham/mcp-homecast/internal/domain"
)

// The BTMC feed indexes every field by row number: item N carries "@row",
// "@n_N" (name), "@pb_N" (buy), "@ps_N" (sell), "@d_N" (updated) and
// "@h_N" (purity).
type btmcResponse struct {
	DataList struct {
		Data []map[string]any `json:"Data"`
	} `json:"DataList"`
}

// GoldPrice fetches domestic gold quotes and keeps the two products users
// actually ask about: SJC bars and plain round rings.
func (c *Client) GoldPrice(ctx context.Context) (*domain.GoldReport, error) {
	params := url.Values{}
	params.Set("key", goldFeedKey)

	var payload btmcResponse
	if err := c.getJSON(ctx, c.feeds, c.goldURL, params, &payload); err != nil {
		return nil, upstreamError("gold price feed", err)
	}
	if len(payload.DataList.Data) == 0 {
		return nil, upstreamError("gold price feed", errors.New("empty data list"))
	}

	var quotes []domain.GoldQuote
	seen := map[string]bool{}
	for _, item := range payload.DataList.Data {
		row := rowValue(item, "row", "")
		if row == "" {
			row = "1"
		}
		name := strings.ToUpper(rowValue(item, "n", row))

		var quoteType string
		switch {
		case strings.Contains(name, "SJC") && strings.Contains(name, "VÀNG MIẾNG") && !seen["sjc"]:
			quoteType = "VÀNG MIẾNG SJC"
			seen["sjc"] = true
		case strings.Contains(name, "NHẪN TRÒN TRƠN") && !seen["ring"]:
			quoteType = "NHẪN TRÒN TRƠN"
			seen["ring"] = true
		default:
			continue
		}

		quotes = append(quotes, domain.GoldQuote{
			Type:    quoteType,
			Purity:  rowValue(item, "h", row),
			Buy:     groupThousands(rowValue(item, "pb", row)),
			Sell:    groupThousands(rowValue(item, "ps", row)),
			Updated: rowValue(item, "d", row),
		})
	}
	if len(quotes) == 0 {
		return nil, upstreamError("gold price feed", errors.New("expected products not present"))
	}

	return &domain.GoldReport{
		Timestamp: c.timestamp(),
		Source:    "Bảo Tín Minh Châu (BTMC)",
		Quotes:    quotes,
		Note:      "Đơn vị: VNĐ/lượng",
	}, nil
}

func rowValue(item map[string]any, key, row string) string {
	lookup := "@" + key
	if key != "row" {
		lookup = "@" + key + "_" + row
	}
	v, ok := item[lookup]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// groupThousands renders "121000000" as "121,000,000"; non-numeric input
// passes through untouched.
func groupThousands(raw string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return raw
	}

	formatted := strconv.FormatInt(n, 10)
	negative := strings.HasPrefix(formatted, "-")
	digits := strings.TrimPrefix(formatted, "-")

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
