package domain

// GoldQuote is one quoted gold product, prices in VND per tael, formatted
// with thousands separators the way the upstream feed is shown to users.
type GoldQuote struct {
	Type    string `json:"type"`
	Purity  string `json:"purity,omitempty"`
	Buy     string `json:"buy"`
	Sell    string `json:"sell"`
	Updated string `json:"updated,omitempty"`
}

type GoldReport struct {
	Timestamp string      `json:"timestamp"`
	Source    string      `json:"source"`
	Quotes    []GoldQuote `json:"data"`
	Note      string      `json:"note,omitempty"`
}

type ForexReport struct {
	Timestamp   string `json:"timestamp"`
	Bank        string `json:"bank"`
	Currency    string `json:"currency"`
	BuyCash     string `json:"buy_cash"`
	BuyTransfer string `json:"buy_transfer"`
	Sell        string `json:"sell"`
}

type CryptoReport struct {
	Timestamp string  `json:"timestamp"`
	PriceUSD  float64 `json:"price_usd"`
	PriceVND  float64 `json:"price_vnd"`
	Change24h float64 `json:"change_24h"`
}

type WeatherReport struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Conditions  string  `json:"weather"`
}

// MusicResult is what the music adapter resolves a song query to.
type MusicResult struct {
	Song     string `json:"song"`
	Artist   string `json:"artist,omitempty"`
	AudioURL string `json:"audio_url"`
	LyricURL string `json:"lyric_url,omitempty"`
}

type LyricsResult struct {
	Song   string `json:"song"`
	Artist string `json:"artist,omitempty"`
	Lyrics string `json:"lyrics"`
}

type AdapterHealth struct {
	AdapterURL string `json:"adapter_url"`
	Status     string `json:"status"`
}
