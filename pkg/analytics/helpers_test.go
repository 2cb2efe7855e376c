package analytics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			want:       "203.0.113.5",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.1.1.1, 10.2.2.2"},
			want:       "203.0.113.5",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.6"},
			want:       "203.0.113.6",
		},
		{
			name:       "remote addr strips port",
			remoteAddr: "10.0.0.1:1234",
			want:       "10.0.0.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tc.want {
				t.Errorf("GetClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGetClientSource(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"hubcap-cli/1.2.0", "cli"},
		{"hubcap-web/2.0", "web"},
		{"Mozilla/5.0", "api"},
		{"", "api"},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Agent", tc.ua)
		if got := GetClientSource(req); got != tc.want {
			t.Errorf("GetClientSource(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestGetClientVersion(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"hubcap-cli/1.2.0", "1.2.0"},
		{"hubcap-cli", ""},
		{"curl/8.0", ""},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Agent", tc.ua)
		if got := GetClientVersion(req); got != tc.want {
			t.Errorf("GetClientVersion(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestGetReferrer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Referer", "https://catalog.example.com/devices")
	if got := GetReferrer(req); got != "https://catalog.example.com/devices" {
		t.Errorf("GetReferrer = %q", got)
	}
}
