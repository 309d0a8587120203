package contact

import "strings"

var regionCurrency = map[string]string{
	"US": "USD", "GB": "GBP", "CA": "CAD", "AU": "AUD",
	"DE": "EUR", "FR": "EUR", "IT": "EUR", "ES": "EUR",
	"NL": "EUR", "BE": "EUR", "AT": "EUR", "PT": "EUR",
	"IE": "EUR", "FI": "EUR", "GR": "EUR", "LU": "EUR",
	"JP": "JPY", "CN": "CNY", "IN": "INR", "BR": "BRL",
	"MX": "MXN", "KR": "KRW", "SG": "SGD", "HK": "HKD",
	"NZ": "NZD", "CH": "CHF", "SE": "SEK", "NO": "NOK",
	"DK": "DKK", "PL": "PLN", "TR": "TRY", "ZA": "ZAR",
	"RU": "RUB", "AE": "AED", "SA": "SAR", "IL": "ILS",
	"ID": "IDR", "MY": "MYR", "TH": "THB", "PH": "PHP",
	"VN": "VND",
}

// CurrencyForRegion maps an ISO 3166 alpha-2 region to its ISO 4217 currency.
func CurrencyForRegion(region string) string {
	if cur, ok := regionCurrency[strings.ToUpper(strings.TrimSpace(region))]; ok {
		return cur
	}
	return UnknownCurrency
}
