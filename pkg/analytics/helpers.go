package analytics

import (
	"net/http"
	"strings"
)

// GetClientIP extracts the client IP address from a request
func GetClientIP(r *http.Request) string {
	// Try X-Forwarded-For header first (proxy/load balancer)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take the first IP if multiple
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	// Try X-Real-IP header
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr, stripping the port
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// GetUserAgent extracts the user agent from a request
func GetUserAgent(r *http.Request) string {
	return r.UserAgent()
}

// GetReferrer extracts the referrer from a request
func GetReferrer(r *http.Request) string {
	return r.Header.Get("Referer")
}

// GetClientSource classifies where a request came from based on the
// User-Agent. Known clients send "hubcap-cli/1.2.0" or "hubcap-web/2.0".
func GetClientSource(r *http.Request) string {
	ua := r.UserAgent()
	if strings.HasPrefix(ua, "hubcap-") {
		name := strings.SplitN(ua, "/", 2)[0]
		return strings.TrimPrefix(name, "hubcap-")
	}
	return "api"
}

// GetClientVersion extracts the client version from the User-Agent, or ""
// for unrecognized clients.
func GetClientVersion(r *http.Request) string {
	ua := r.UserAgent()
	if strings.HasPrefix(ua, "hubcap-") {
		parts := strings.SplitN(ua, "/", 2)
		if len(parts) > 1 {
			return parts[1]
		}
	}
	return ""
}
