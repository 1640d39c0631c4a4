package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/dataview/internal/core"
)

// parseIntParam parses an integer query parameter. Missing values, values
// that do not parse and values below min give defaultVal.
func parseIntParam(r *http.Request, name string, defaultVal, min int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < min {
		return defaultVal
	}
	return i
}

// requestContext adds the client IP to the request context for logging.
func requestContext(r *http.Request) context.Context {
	return core.ContextWithClientIP(r.Context(), clientIP(r))
}
