package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func testContext(headers map[string]string, remoteAddr string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.Request = req
	return c
}

func TestExtractSignalHeaders(t *testing.T) {
	c := testContext(map[string]string{
		"User-Agent":        "Mozilla/5.0",
		"Accept-Language":   "de-DE",
		"Accept-Encoding":   "gzip, br",
		"Accept":            "text/html",
		"DNT":               "1",
		"X-Client-Screen":   "1920x1080",
		"X-Client-Timezone": "Europe/Berlin",
	}, "198.51.100.7:52100")

	s := ExtractSignal(c, false)
	if s.Address != "198.51.100.7" {
		t.Fatalf("expected socket address, got %q", s.Address)
	}
	if s.UserAgent != "Mozilla/5.0" || s.AcceptLanguage != "de-DE" || s.AcceptEncoding != "gzip, br" || s.Accept != "text/html" {
		t.Fatalf("unexpected header fields %+v", s)
	}
	if !s.DoNotTrack || s.Screen != "1920x1080" || s.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected client hints %+v", s)
	}
}

func TestExtractSignalAddress(t *testing.T) {
	cases := []struct {
		name       string
		xff        string
		remoteAddr string
		trustProxy bool
		want       string
	}{
		{name: "first forwarded hop", xff: "203.0.113.9, 10.0.0.1", remoteAddr: "10.0.0.1:443", trustProxy: true, want: "203.0.113.9"},
		{name: "forwarded ignored when untrusted", xff: "203.0.113.9", remoteAddr: "10.0.0.1:443", want: "10.0.0.1"},
		{name: "empty first hop", xff: " , 10.0.0.2", remoteAddr: "10.0.0.1:443", trustProxy: true, want: "10.0.0.1"},
		{name: "no forwarded header", remoteAddr: "[2001:db8::1]:8080", trustProxy: true, want: "2001:db8::1"},
		{name: "address without port", remoteAddr: "192.0.2.4", want: "192.0.2.4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.xff != "" {
				headers["X-Forwarded-For"] = tc.xff
			}
			s := ExtractSignal(testContext(headers, tc.remoteAddr), tc.trustProxy)
			if s.Address != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, s.Address)
			}
		})
	}
}

func TestExtractSignalMissingHeaders(t *testing.T) {
	s := ExtractSignal(testContext(nil, "192.0.2.4:1"), true)
	if s.UserAgent != "" || s.Screen != "" || s.DoNotTrack {
		t.Fatalf("missing headers must be empty, got %+v", s)
	}
}
