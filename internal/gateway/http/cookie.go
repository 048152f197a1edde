package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// refreshCookieName is fixed by the frontend contract. The colon is not
// a valid RFC 6265 token character, so net/http's cookie helpers refuse
// the name and both directions are handled on the raw headers instead.
const refreshCookieName = "authgate:refresh_token"

// setRefreshCookie attaches the refresh token as an HTTP-only cookie
// scoped to the refresh route.
func setRefreshCookie(w http.ResponseWriter, token, rootPath string, maxAge time.Duration) {
	w.Header().Add("Set-Cookie", fmt.Sprintf(
		"%s=%s; Max-Age=%d; Path=%s/refresh; HttpOnly; Secure; SameSite=Lax",
		refreshCookieName, token, int(maxAge.Seconds()), rootPath))
}

// refreshCookie extracts the refresh token from the Cookie header.
func refreshCookie(r *http.Request) (string, bool) {
	for _, part := range strings.Split(r.Header.Get("Cookie"), ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == refreshCookieName && value != "" {
			return value, true
		}
	}
	return "", false
}
