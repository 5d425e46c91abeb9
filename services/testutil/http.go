package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// ClientHeaders are the request headers a browser would send. Zero fields are skipped.
type ClientHeaders struct {
	ForwardedFor   string
	RemoteAddr     string
	UserAgent      string
	AcceptLanguage string
	Token          string
	Extra          map[string]string
}

func MakeClientRequest(router *gin.Engine, method, path string, body any, h ClientHeaders) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if h.RemoteAddr != "" {
		req.RemoteAddr = h.RemoteAddr
	}
	if h.ForwardedFor != "" {
		req.Header.Set("X-Forwarded-For", h.ForwardedFor)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if h.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", h.AcceptLanguage)
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	for k, v := range h.Extra {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func MakeAPIRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return MakeClientRequest(router, method, path, body, ClientHeaders{})
}
