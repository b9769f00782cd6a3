package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderCorrelationID 在请求与响应中携带关联 ID，并随合成任务传给 worker。
const HeaderCorrelationID = "X-Correlation-ID"

const correlationIDKey = "correlationID"

var correlationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// CorrelationIDMiddleware 沿用客户端提供的合法 ID，否则生成新的 UUID。
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderCorrelationID)
		if !correlationIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(correlationIDKey, id)
		c.Header(HeaderCorrelationID, id)
		c.Next()
	}
}

// GetCorrelationID 未经过中间件时返回空字符串。
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}
