package domain

// Ticker is one configured instrument.
// Loaded from the ticker configuration file, never derived from prices.
type Ticker struct {
	Symbol     string     // upper-cased symbol, e.g. AAPL, EURUSD, BTC
	Name       string     // display name (may be empty)
	AssetClass AssetClass // Equity, FX or Crypto
	Group      string     // logical group from configuration
	Currency   string     // quote currency
	Market     string     // quote market for FX/Crypto (may be empty)
}

// TickerRow represents one dim_ticker row.
type TickerRow struct {
	Ticker     string
	Name       string
	AssetClass AssetClass
	Group      string
	Currency   string
	Source     string
}
