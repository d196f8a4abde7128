package sources

import (
	"strings"
)

// Stablecoin aliases quoted by exchanges in place of USD.
var stablecoinAliases = map[string]string{
	"USDT": "USD",
	"USDC": "USD",
	"BUSD": "USD",
	"DAI":  "USD",
	"TUSD": "USD",
	"USDP": "USD",
}

// Base currency aliases
var baseCurrencyAliases = map[string]string{
	"WBTC":  "BTC",
	"XBT":   "BTC",
	"WETH":  "ETH",
	"STETH": "ETH",
}

// NormalizeSymbol converts a trading pair symbol to its canonical form
// Examples:
//   - XMR/USDT -> XMR/USD
//   - xbt/eur -> BTC/EUR
//   - WBTC/USD -> BTC/USD
//   - LTC/BTC -> LTC/BTC (no change)
func NormalizeSymbol(symbol string) string {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return symbol
	}

	base := NormalizeCurrency(parts[0])
	quote := strings.ToUpper(strings.TrimSpace(parts[1]))

	// Normalize quote currency (mainly stablecoins)
	if normalized, ok := stablecoinAliases[quote]; ok {
		quote = normalized
	}
	if normalized, ok := baseCurrencyAliases[quote]; ok {
		quote = normalized
	}

	return base + "/" + quote
}

// NormalizeCurrency upper-cases a currency code and resolves wrapped aliases.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if normalized, ok := baseCurrencyAliases[code]; ok {
		return normalized
	}
	return code
}

// IsEquivalentSymbol checks if two symbols are equivalent after normalization
func IsEquivalentSymbol(symbol1, symbol2 string) bool {
	return NormalizeSymbol(symbol1) == NormalizeSymbol(symbol2)
}
