package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns the upgrader's origin policy. Requests without an
// Origin header (non-browser viewers) pass, as does the dashboard's own
// origin taken from appURL. allowLoopback additionally admits any
// localhost, 127.0.0.1 or [::1] origin.
func NewCheckOrigin(appURL string, allowLoopback bool) func(r *http.Request) bool {
	appOrigin := canonicalOrigin(appURL)

	return func(r *http.Request) bool {
		raw := r.Header.Get("Origin")
		if raw == "" {
			return true
		}

		origin := canonicalOrigin(raw)
		if origin != "" && origin == appOrigin {
			return true
		}
		if allowLoopback && isLoopbackOrigin(raw) {
			return true
		}

		slog.WarnContext(r.Context(), "Viewer origin rejected", "origin", raw, "remote_addr", r.RemoteAddr)
		return false
	}
}

// canonicalOrigin reduces a URL to scheme://host[:port] in lower case,
// dropping the port when it is the scheme default. It returns "" for
// anything without a host.
func canonicalOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
