package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"market-etl/internal/domain"
)

// ErrInvalidTickerConfig marks a missing or malformed ticker file.
var ErrInvalidTickerConfig = errors.New("invalid ticker configuration")

// Group defaults.
const (
	DefaultAssetClass = domain.AssetClassEquity
	DefaultCurrency   = "USD"
)

type tickerFile struct {
	Groups map[string]groupConfig `yaml:"groups"`
}

type groupConfig struct {
	AssetClass string         `yaml:"asset_class" validate:"oneof=Equity FX Crypto"`
	Currency   string         `yaml:"currency"`
	Market     string         `yaml:"market"`
	Tickers    []tickerConfig `yaml:"tickers" validate:"required,min=1,dive"`
}

type tickerConfig struct {
	Symbol   string `yaml:"symbol" validate:"required"`
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
	Market   string `yaml:"market"`
}

// LoadTickers reads the ticker universe from a YAML file.
func LoadTickers(path string) ([]domain.Ticker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTickerConfig, err)
	}
	return ParseTickers(data)
}

// ParseTickers decodes a ticker file. Symbols are trimmed and upper-cased;
// the result is sorted by (asset class, group, symbol).
func ParseTickers(data []byte) ([]domain.Ticker, error) {
	var f tickerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTickerConfig, err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("%w: no groups defined", ErrInvalidTickerConfig)
	}

	var tickers []domain.Ticker
	seen := make(map[string]string)
	for groupName, g := range f.Groups {
		if g.AssetClass == "" {
			g.AssetClass = string(DefaultAssetClass)
		}
		if g.Currency == "" {
			g.Currency = DefaultCurrency
		}
		for i := range g.Tickers {
			g.Tickers[i].Symbol = normalizeSymbol(g.Tickers[i].Symbol)
		}
		if err := validate.Struct(&g); err != nil {
			return nil, fmt.Errorf("%w: group %q: %w", ErrInvalidTickerConfig, groupName, err)
		}

		for _, tc := range g.Tickers {
			if other, dup := seen[tc.Symbol]; dup {
				return nil, fmt.Errorf("%w: symbol %s in groups %q and %q", ErrInvalidTickerConfig, tc.Symbol, other, groupName)
			}
			seen[tc.Symbol] = groupName

			t := domain.Ticker{
				Symbol:     tc.Symbol,
				Name:       tc.Name,
				AssetClass: domain.AssetClass(g.AssetClass),
				Group:      groupName,
				Currency:   g.Currency,
				Market:     g.Market,
			}
			if tc.Currency != "" {
				t.Currency = tc.Currency
			}
			if tc.Market != "" {
				t.Market = tc.Market
			}
			tickers = append(tickers, t)
		}
	}

	SortTickers(tickers)
	return tickers, nil
}

// SortTickers orders tickers by (asset class, group, symbol).
func SortTickers(tickers []domain.Ticker) {
	sort.Slice(tickers, func(i, j int) bool {
		a, b := tickers[i], tickers[j]
		if a.AssetClass != b.AssetClass {
			return a.AssetClass < b.AssetClass
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Symbol < b.Symbol
	})
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
