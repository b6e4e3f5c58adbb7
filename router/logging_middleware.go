package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/logharbour/logharbour"
)

// RequestInfo captures one completed HTTP request for the access log.
type RequestInfo struct {
	Method       string
	Path         string
	Query        string
	ClientIP     string
	Status       int
	Duration     time.Duration
	RequestSize  int64
	ResponseSize int
}

// RequestLogger receives one RequestInfo per completed request.
type RequestLogger interface {
	LogRequest(info RequestInfo)
}

// LogRequest records method, path, status and timing for every request.
func LogRequest(logger RequestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.LogRequest(RequestInfo{
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			Query:        c.Request.URL.RawQuery,
			ClientIP:     c.ClientIP(),
			Status:       c.Writer.Status(),
			Duration:     time.Since(start),
			RequestSize:  c.Request.ContentLength,
			ResponseSize: c.Writer.Size(),
		})
	}
}

// LogHarbourAdapter writes access log entries through a logharbour logger.
type LogHarbourAdapter struct {
	lh *logharbour.Logger
}

func NewLogHarbourAdapter(lh *logharbour.Logger) *LogHarbourAdapter {
	return &LogHarbourAdapter{lh: lh}
}

func (a *LogHarbourAdapter) LogRequest(info RequestInfo) {
	a.lh.WithModule("http").
		WithOp("request").
		WithRemoteIP(info.ClientIP).
		WithStatus(statusOf(info.Status)).
		Info().
		LogActivity("HTTP request completed", map[string]any{
			"method":        info.Method,
			"path":          info.Path,
			"query":         info.Query,
			"status":        info.Status,
			"duration_ms":   info.Duration.Milliseconds(),
			"request_size":  info.RequestSize,
			"response_size": info.ResponseSize,
		})
}

func statusOf(httpStatus int) logharbour.Status {
	if httpStatus >= 400 {
		return logharbour.Failure
	}
	return logharbour.Success
}
