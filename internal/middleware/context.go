// AngelaMos | 2026
// context.go

package middleware

type contextKey string

const RequestIDKey contextKey = "request_id"
