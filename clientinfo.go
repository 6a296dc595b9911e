package paywatch

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"
)

// clientPreferences captures device information from an HTTP request as
// session preference entries: ip, browser, os and device_type.
func clientPreferences(r *http.Request) map[string]string {
	ua := r.UserAgent()
	prefs := map[string]string{
		"ip": extractIP(r),
	}
	if ua == "" {
		return prefs
	}

	parsed := useragent.New(ua)
	browser, browserVersion := parsed.Browser()
	if browserVersion != "" {
		browser = browser + " " + browserVersion
	}
	prefs["browser"] = browser

	osInfo := parsed.OSInfo()
	os := osInfo.Name
	if osInfo.Version != "" {
		os = os + " " + osInfo.Version
	}
	prefs["os"] = os

	deviceType := "desktop"
	if parsed.Mobile() {
		deviceType = "mobile"
	} else if parsed.Bot() {
		deviceType = "bot"
	} else if isTablet(ua) {
		deviceType = "tablet"
	}
	prefs["device_type"] = deviceType

	return prefs
}

// extractIP extracts the client IP from an HTTP request.
// It checks common proxy headers first, then falls back to RemoteAddr.
func extractIP(r *http.Request) string {
	// X-Forwarded-For is a comma-separated list, first entry is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip := strings.TrimSpace(xri)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return host
}

// isTablet checks if the user agent indicates a tablet device.
func isTablet(ua string) bool {
	ua = strings.ToLower(ua)
	for _, keyword := range []string{"ipad", "tablet", "playbook", "silk"} {
		if strings.Contains(ua, keyword) {
			return true
		}
	}
	return false
}

// geoReader resolves client IPs to ISO country codes using a MaxMind
// GeoLite2 database.
type geoReader struct {
	db *geoip2.Reader
}

func newGeoReader(dbPath string) (*geoReader, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("geoip: failed to open database: %w", err)
	}
	return &geoReader{db: db}, nil
}

// countryCode returns the ISO country code for an IP, or "" when the IP
// is invalid or unknown. Lookup failures are soft: sessions simply get
// no country preference.
func (g *geoReader) countryCode(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := g.db.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

func (g *geoReader) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}
