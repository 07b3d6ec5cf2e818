package auth

import "net/http"

// Known OAuth scopes used by the activities service.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
)

// Permits reports whether claims allow a request with the given method.
// Safe methods need read or write; everything else needs write.
func Permits(claims *Claims, method string) bool {
	if claims == nil {
		return false
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return claims.HasScope(ScopeActivitiesRead) || claims.HasScope(ScopeActivitiesWrite)
	default:
		return claims.HasScope(ScopeActivitiesWrite)
	}
}
