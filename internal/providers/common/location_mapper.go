// internal/providers/common/location_mapper.go
package common

import (
	"strings"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

// MapLocationToCountry maps a location to a Bright Data country code
func MapLocationToCountry(location *models.Location) string {
	if location == nil {
		return "US" // Default to US
	}

	countryMap := map[string]string{
		"US": "US",
		"CA": "CA",
		"GB": "GB",
		"UK": "GB", // Handle UK -> GB mapping
		"AU": "AU",
		"DE": "DE",
		"FR": "FR",
		"IT": "IT",
		"ES": "ES",
		"NL": "NL",
		"JP": "JP",
		"KR": "KR",
		"IN": "IN",
		"BR": "BR",
		"MX": "MX",
	}

	if country, exists := countryMap[strings.ToUpper(location.Country)]; exists {
		return country
	}

	// Fallback to US if country not found
	return "US"
}

// MapLocationToCode maps a location to a DataForSEO location code
func MapLocationToCode(location *models.Location) int {
	codes := map[string]int{
		"US": 2840,
		"CA": 2124,
		"GB": 2826,
		"UK": 2826,
		"AU": 2036,
		"DE": 2276,
		"FR": 2250,
		"IT": 2380,
		"ES": 2724,
		"NL": 2528,
		"JP": 2392,
		"KR": 2410,
		"IN": 2356,
		"BR": 2076,
		"MX": 2484,
	}

	if location != nil {
		if code, exists := codes[strings.ToUpper(location.Country)]; exists {
			return code
		}
	}
	return codes["US"]
}

// MapLocationToName builds a DataForSEO location_name string from a location.
// Returns empty when no location is set so the provider default applies.
func MapLocationToName(location *models.Location) string {
	if location == nil {
		return ""
	}

	countryNames := map[string]string{
		"US": "United States",
		"CA": "Canada",
		"GB": "United Kingdom",
		"UK": "United Kingdom",
		"AU": "Australia",
		"DE": "Germany",
		"FR": "France",
		"IT": "Italy",
		"ES": "Spain",
		"NL": "Netherlands",
		"JP": "Japan",
		"KR": "South Korea",
		"IN": "India",
		"BR": "Brazil",
		"MX": "Mexico",
	}

	name, exists := countryNames[strings.ToUpper(location.Country)]
	if !exists {
		return ""
	}

	parts := []string{}
	if location.City != nil && *location.City != "" {
		parts = append(parts, *location.City)
	}
	if location.Region != nil && *location.Region != "" {
		parts = append(parts, *location.Region)
	}
	parts = append(parts, name)
	return strings.Join(parts, ",")
}
