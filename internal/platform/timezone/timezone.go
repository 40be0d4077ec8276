// Package timezone resolves a user's IANA zone from their phone number and
// answers offset and rendering questions for that zone.
package timezone

import (
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo

	"github.com/nyaruka/phonenumbers"
)

// Fallback is returned whenever a zone cannot be determined.
const Fallback = "UTC"

// LocalLayout renders instants for prompts and confirmations.
const LocalLayout = "Mon, Jan 2, 2006, 03:04 PM MST"

// One representative zone per country; multi-zone countries map to their
// most populous zone.
var countryZones = map[string]string{
	// North America
	"US": "America/New_York",
	"CA": "America/Toronto",
	"MX": "America/Mexico_City",

	// Europe
	"GB": "Europe/London",
	"DE": "Europe/Berlin",
	"FR": "Europe/Paris",
	"IT": "Europe/Rome",
	"ES": "Europe/Madrid",
	"NL": "Europe/Amsterdam",
	"CH": "Europe/Zurich",
	"AT": "Europe/Vienna",
	"BE": "Europe/Brussels",
	"SE": "Europe/Stockholm",
	"NO": "Europe/Oslo",
	"DK": "Europe/Copenhagen",
	"FI": "Europe/Helsinki",
	"PL": "Europe/Warsaw",
	"CZ": "Europe/Prague",
	"HU": "Europe/Budapest",
	"GR": "Europe/Athens",
	"PT": "Europe/Lisbon",
	"IE": "Europe/Dublin",

	// Asia-Pacific
	"JP": "Asia/Tokyo",
	"CN": "Asia/Shanghai",
	"IN": "Asia/Kolkata",
	"KR": "Asia/Seoul",
	"SG": "Asia/Singapore",
	"HK": "Asia/Hong_Kong",
	"TW": "Asia/Taipei",
	"TH": "Asia/Bangkok",
	"MY": "Asia/Kuala_Lumpur",
	"PH": "Asia/Manila",
	"ID": "Asia/Jakarta",
	"VN": "Asia/Ho_Chi_Minh",
	"AE": "Asia/Dubai",
	"SA": "Asia/Riyadh",
	"IL": "Asia/Jerusalem",
	"TR": "Europe/Istanbul",

	// Oceania
	"AU": "Australia/Sydney",
	"NZ": "Pacific/Auckland",

	// South America
	"BR": "America/Sao_Paulo",
	"AR": "America/Argentina/Buenos_Aires",
	"CL": "America/Santiago",
	"CO": "America/Bogota",
	"PE": "America/Lima",
	"VE": "America/Caracas",

	// Africa
	"ZA": "Africa/Johannesburg",
	"EG": "Africa/Cairo",
	"NG": "Africa/Lagos",
	"KE": "Africa/Nairobi",
	"MA": "Africa/Casablanca",
}

// Resolve maps a phone number to an IANA zone name. It never fails: any
// parse problem or unmapped country yields Fallback.
func Resolve(phoneNumber string) (zone string) {
	defer func() {
		if r := recover(); r != nil {
			zone = Fallback
		}
	}()

	n := strings.TrimSpace(phoneNumber)
	if n == "" {
		return Fallback
	}
	// WhatsApp delivers numbers as bare digits.
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}

	parsed, err := phonenumbers.Parse(n, "")
	if err != nil {
		return Fallback
	}
	region := phonenumbers.GetRegionCodeForNumber(parsed)
	if z, ok := countryZones[region]; ok {
		return z
	}
	return Fallback
}

// Location loads zone, falling back to UTC for unknown names.
func Location(zone string) *time.Location {
	if zone == "" || zone == "Local" {
		return time.UTC
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsValid reports whether zone names a loadable IANA zone.
func IsValid(zone string) bool {
	if zone == "" || zone == "Local" {
		return false
	}
	_, err := time.LoadLocation(zone)
	return err == nil
}

// UTCOffsetHours returns how far zone's wall clock is ahead of UTC at
// instant, in hours. The two wall-clock readings are compared as if both
// were UTC, so DST in effect at instant is honored. Unknown zones yield 0.
func UTCOffsetHours(zone string, instant time.Time) float64 {
	if !IsValid(zone) {
		return 0
	}
	loc, _ := time.LoadLocation(zone)

	local := instant.In(loc)
	utc := instant.UTC()
	localWall := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
	utcWall := time.Date(utc.Year(), utc.Month(), utc.Day(), utc.Hour(), utc.Minute(), utc.Second(), 0, time.UTC)

	return localWall.Sub(utcWall).Hours()
}

// FormatLocal renders instant in zone using LocalLayout.
func FormatLocal(instant time.Time, zone string) string {
	return instant.In(Location(zone)).Format(LocalLayout)
}
