package auth

// publicPaths lists URL paths that never need a session. These are
// infrastructure endpoints polled by load balancers and scrapers.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// IsPublicPath reports whether the given route path bypasses session
// resolution.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
