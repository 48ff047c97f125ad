package auth

import (
	"net/http"
	"net/url"
	"time"
)

// CookieSettings contains cookie security settings derived from base URL.
type CookieSettings struct {
	// Name is the cookie carrying the JWT.
	Name string
	// Secure indicates whether the cookie should only be sent over HTTPS.
	Secure bool
	// Domain is the cookie domain scope; empty isolates it to the host.
	Domain string
}

// DeriveCookieSettings determines cookie security settings from base URL:
//   - http://localhost:3000 → Secure: false
//   - https://finmon.example.com → Secure: true
//
// The configCookieDomain parameter sets the domain explicitly; otherwise the
// cookie is host-only.
func DeriveCookieSettings(name, baseURL, configCookieDomain string) CookieSettings {
	return CookieSettings{
		Name:   name,
		Secure: isHTTPS(baseURL),
		Domain: configCookieDomain,
	}
}

// SetTokenCookie writes the JWT cookie expiring with the token.
func (s CookieSettings) SetTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     "/",
		Domain:   s.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie expires the JWT cookie.
func (s CookieSettings) ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     "/",
		Domain:   s.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isHTTPS determines if the given base URL uses HTTPS protocol.
// Returns true for HTTPS, false for HTTP, true for empty/invalid URLs (safe default).
func isHTTPS(baseURL string) bool {
	if baseURL == "" {
		return true
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return true
	}

	return parsedURL.Scheme != "http"
}
