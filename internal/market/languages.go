package market

import "strings"

// Language is read-only reference data describing a supported language.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
	Script     string `json:"script"`
	Direction  string `json:"direction"` // "ltr" or "rtl"
	Speakers   int64  `json:"speakers"`
	Region     string `json:"region"`
}

// The launch catalog. Seed-time data; there is no runtime mutation path.
var languageCatalog = []Language{
	{Code: "hi", Name: "Hindi", NativeName: "हिन्दी", Script: "Devanagari", Direction: "ltr", Speakers: 600_000_000, Region: "South Asia"},
	{Code: "bn", Name: "Bengali", NativeName: "বাংলা", Script: "Bengali", Direction: "ltr", Speakers: 230_000_000, Region: "South Asia"},
	{Code: "sw", Name: "Swahili", NativeName: "Kiswahili", Script: "Latin", Direction: "ltr", Speakers: 100_000_000, Region: "East Africa"},
	{Code: "yo", Name: "Yoruba", NativeName: "Yorùbá", Script: "Latin", Direction: "ltr", Speakers: 45_000_000, Region: "West Africa"},
	{Code: "ha", Name: "Hausa", NativeName: "Hausa", Script: "Latin", Direction: "ltr", Speakers: 80_000_000, Region: "West Africa"},
	{Code: "ar-eg", Name: "Egyptian Arabic", NativeName: "مصري", Script: "Arabic", Direction: "rtl", Speakers: 100_000_000, Region: "Middle East"},
	{Code: "ar-gulf", Name: "Gulf Arabic", NativeName: "خليجي", Script: "Arabic", Direction: "rtl", Speakers: 36_000_000, Region: "Middle East"},
}

// Languages returns the full catalog. Callers must not mutate the result.
func Languages() []Language {
	out := make([]Language, len(languageCatalog))
	copy(out, languageCatalog)
	return out
}

// LanguageByCode looks up a single language.
func LanguageByCode(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range languageCatalog {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// LanguagesByRegion filters the catalog by region, case-insensitively.
func LanguagesByRegion(region string) []Language {
	region = strings.TrimSpace(region)
	var out []Language
	for _, l := range languageCatalog {
		if strings.EqualFold(l.Region, region) {
			out = append(out, l)
		}
	}
	return out
}

// LanguageRegions returns the distinct regions in catalog order.
func LanguageRegions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range languageCatalog {
		if !seen[l.Region] {
			seen[l.Region] = true
			out = append(out, l.Region)
		}
	}
	return out
}

// TotalSpeakers sums approximate speaker counts across the catalog.
func TotalSpeakers() int64 {
	var sum int64
	for _, l := range languageCatalog {
		sum += l.Speakers
	}
	return sum
}
