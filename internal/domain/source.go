package domain

// AssetClass represents the instrument family of a ticker.
type AssetClass string

const (
	AssetClassEquity AssetClass = "Equity"
	AssetClassFX     AssetClass = "FX"
	AssetClassCrypto AssetClass = "Crypto"
)

// String returns the string representation of AssetClass.
func (a AssetClass) String() string {
	return string(a)
}

// IsValid checks if the asset class is a supported value.
func (a AssetClass) IsValid() bool {
	return a == AssetClassEquity || a == AssetClassFX || a == AssetClassCrypto
}

// ReportsVolume reports whether the provider publishes traded volume for the class.
// FX quotes carry no volume.
func (a AssetClass) ReportsVolume() bool {
	return a != AssetClassFX
}
