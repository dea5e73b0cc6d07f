package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"stockledger/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	SignatureHeader = "X-Signature"
	maxWebhookBody  = 1 << 20
)

// Sign returns the hex HMAC-SHA256 of body, as the order system sends it.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks X-Signature ("sha256=<hex>" or bare hex) against the
// raw body. The body is restored for the handler. An empty secret disables
// the check.
func VerifySignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil || len(body) > maxWebhookBody {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, apierror.New("payload too large or unreadable"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		got := strings.TrimPrefix(c.GetHeader(SignatureHeader), "sha256=")
		want := Sign(secret, body)
		if !hmac.Equal([]byte(got), []byte(want)) {
			log.Warn().Str("request_id", c.GetString(RequestIDKey)).Str("ip", c.ClientIP()).
				Msg("webhook: signature mismatch")
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("invalid signature"))
			return
		}
		c.Next()
	}
}
