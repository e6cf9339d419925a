package models

// Marketplace identifies a regional Amazon storefront.
type Marketplace string

const (
	MarketplaceUS Marketplace = "US"
	MarketplaceFR Marketplace = "FR"
	MarketplaceDE Marketplace = "DE"
	MarketplaceUK Marketplace = "UK"
	MarketplaceIT Marketplace = "IT"
	MarketplaceES Marketplace = "ES"
	MarketplaceEU Marketplace = "EU"
	MarketplaceBR Marketplace = "BR"
	MarketplaceIN Marketplace = "IN"
	MarketplaceCA Marketplace = "CA"
)

var marketplaceCurrencies = map[Marketplace]string{
	MarketplaceFR: "EUR",
	MarketplaceDE: "EUR",
	MarketplaceIT: "EUR",
	MarketplaceES: "EUR",
	MarketplaceEU: "EUR",
	MarketplaceUK: "GBP",
	MarketplaceCA: "CAD",
	MarketplaceBR: "BRL",
	MarketplaceIN: "INR",
}

var marketplaceCountries = map[Marketplace]string{
	MarketplaceFR: "France",
	MarketplaceDE: "Germany",
	MarketplaceUK: "United Kingdom",
	MarketplaceIT: "Italy",
	MarketplaceES: "Spain",
	MarketplaceEU: "Europe",
	MarketplaceBR: "Brazil",
	MarketplaceIN: "India",
	MarketplaceCA: "Canada",
}

// Currency returns the currency code paired with the marketplace.
// Unknown marketplaces fall back to USD.
func (m Marketplace) Currency() string {
	if c, ok := marketplaceCurrencies[m]; ok {
		return c
	}
	return "USD"
}

// Country returns a human readable country name for the marketplace.
func (m Marketplace) Country() string {
	if c, ok := marketplaceCountries[m]; ok {
		return c
	}
	return "United States"
}

// CommaDecimal reports whether the marketplace formats prices with a comma
// as the decimal separator (e.g. "39,00" or "1.234,56").
func (m Marketplace) CommaDecimal() bool {
	switch m {
	case MarketplaceFR, MarketplaceDE, MarketplaceIT, MarketplaceES, MarketplaceEU:
		return true
	}
	return false
}
