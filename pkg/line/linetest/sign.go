// Package linetest 提供构造 LINE webhook 请求的测试工具。
package linetest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
)

// Sign 计算 body 的 X-Line-Signature。
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NewRequest 构造一个带签名头的 webhook 请求，signature 为空时按 channelSecret 签名。
func NewRequest(channelSecret, path string, body []byte, signature string) *http.Request {
	if signature == "" {
		signature = Sign(channelSecret, body)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", signature)
	return req
}
