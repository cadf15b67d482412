package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists routes reachable without a session.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/db":    true,
	"/api/health":   true,
	"/api/login":    true,
	"/api/register": true,
	"/api/logout":   true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
