// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"linebot-relay-go/pkg/log"
)

// maxLoggedBody 是日志中记录的请求/响应体最大字节数。
const maxLoggedBody = 2048

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func truncate(b []byte) string {
	if len(b) <= maxLoggedBody {
		return string(b)
	}
	return string(b[:maxLoggedBody]) + "...(truncated)"
}

// RequestLogger 记录每个请求的状态码、耗时与请求/响应体。
// skipBodyPaths 中的路径不记录请求体，例如登录接口。
func RequestLogger(skipBodyPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipBodyPaths))
	for _, p := range skipBodyPaths {
		skip[p] = true
	}
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		// 重新设置请求体，以便后续处理函数可以正常读取
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		path := c.Request.URL.Path
		loggedBody := truncate(requestBody)
		if skip[path] {
			loggedBody = "[omitted]"
		}
		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"requestBody", loggedBody,
			"responseBody", truncate(blw.body.Bytes()),
		)
	}
}
