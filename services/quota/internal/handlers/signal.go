package handlers

import (
	"net"
	"strings"

	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/fingerprint"
	"github.com/gin-gonic/gin"
)

const (
	headerForwardedFor   = "X-Forwarded-For"
	headerClientScreen   = "X-Client-Screen"
	headerClientTimezone = "X-Client-Timezone"
)

// ExtractSignal collects the client hints of a request. With trustProxy the first hop
// of X-Forwarded-For is the client address, otherwise the socket peer is.
func ExtractSignal(c *gin.Context, trustProxy bool) fingerprint.Signal {
	h := c.Request.Header
	return fingerprint.Signal{
		Address:        clientAddress(c, trustProxy),
		UserAgent:      h.Get("User-Agent"),
		AcceptLanguage: h.Get("Accept-Language"),
		AcceptEncoding: h.Get("Accept-Encoding"),
		Accept:         h.Get("Accept"),
		DoNotTrack:     h.Get("DNT") == "1",
		Screen:         h.Get(headerClientScreen),
		Timezone:       h.Get(headerClientTimezone),
	}
}

func clientAddress(c *gin.Context, trustProxy bool) string {
	if trustProxy {
		if xff := c.GetHeader(headerForwardedFor); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	addr := strings.TrimSpace(c.Request.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
