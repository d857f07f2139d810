package middleware

import "github.com/gin-gonic/gin"

// operatorIDKey is the key used to store the authenticated operator's ID in the request context.
const operatorIDKey = contextKey("operatorID")

// GetOperatorIDFromContext retrieves the authenticated operator ID.
// It returns the operator ID and a boolean indicating if it was found.
func GetOperatorIDFromContext(c *gin.Context) (string, bool) {
	if c.Request != nil {
		if id, ok := c.Request.Context().Value(operatorIDKey).(string); ok && id != "" {
			return id, true
		}
	}
	if val, exists := c.Get(string(operatorIDKey)); exists {
		if id, ok := val.(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
