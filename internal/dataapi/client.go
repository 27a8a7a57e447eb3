// Package dataapi proxies the public read-only data feeds exposed as tools:
// domestic gold prices, the USD/VND rate, Bitcoin, weather, and the music
// adapter service. Every operation is one outbound request plus reshaping.
package dataapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/monpham/mcp-homecast/internal/domain"
)

const (
	defaultGoldURL    = "http://api.btmc.vn/api/BTMCAPI/getpricebtmc"
	defaultForexURL   = "https://portal.vietcombank.com.vn/Usercontrols/TVPortal.TyGia/pXML.aspx"
	defaultCryptoURL  = "https://api.coingecko.com/api/v3/simple/price"
	defaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

	// Issued key of the public BTMC price feed; the feed is keyed but free.
	goldFeedKey = "3kd8ub1llcg9t45hnoh8hmn7t5kc2v"

	feedTimeout    = 15 * time.Second
	adapterTimeout = 30 * time.Second
	healthTimeout  = 5 * time.Second

	timestampLayout = "02/01/2006 15:04"
)

type Options struct {
	// AdapterURL is the music adapter base URL, no trailing slash.
	AdapterURL string
	// VerifySSL applies to the adapter client only; the public feeds always
	// verify.
	VerifySSL bool
	Logger    *slog.Logger
}

type Client struct {
	feeds      *http.Client
	adapter    *http.Client
	adapterURL string
	logger     *slog.Logger
	now        func() time.Time

	goldURL    string
	forexURL   string
	cryptoURL  string
	weatherURL string
}

func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		feeds:      newRetryingClient(feedTimeout, true),
		adapter:    newRetryingClient(adapterTimeout, opts.VerifySSL),
		adapterURL: strings.TrimRight(opts.AdapterURL, "/"),
		logger:     logger,
		now:        time.Now,
		goldURL:    defaultGoldURL,
		forexURL:   defaultForexURL,
		cryptoURL:  defaultCryptoURL,
		weatherURL: defaultWeatherURL,
	}
}

func newRetryingClient(timeout time.Duration, verifyTLS bool) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	if !verifyTLS {
		transport := cleanhttp.DefaultPooledTransport()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		rc.HTTPClient.Transport = transport
	}
	return rc.StandardClient()
}

func (c *Client) getBody(ctx context.Context, client *http.Client, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, client *http.Client, rawURL string, params url.Values, out any) error {
	body, err := c.getBody(ctx, client, rawURL, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) timestamp() string {
	return c.now().Format(timestampLayout)
}

func upstreamError(operation string, err error) *domain.ToolError {
	return &domain.ToolError{
		Code:    domain.ErrCodeUpstreamError,
		Message: fmt.Sprintf("%s: %v", operation, err),
	}
}
