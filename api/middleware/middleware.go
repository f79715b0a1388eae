/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package middleware

import (
	"crypto/subtle"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
)

// KeyHeader carries the instance secret when the server runs in secure mode.
const KeyHeader = "X-Tally-Key"

// CodeRateLimited is returned when a caller exceeds the request budget.
const CodeRateLimited = 4294290

// CodeSecretKey is returned when the instance secret is missing or wrong.
const CodeSecretKey = 4010001

func abort(c *gin.Context, err apierror.APIError) {
	c.AbortWithStatusJSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err, "result": nil})
}

// limitKey buckets callers by token. Anonymous requests fall back to the
// client IP.
func limitKey(c *gin.Context) string {
	if token := c.GetHeader(TokenHeader); token != "" {
		return "token:" + token
	}
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware limits requests per caller with Tollbooth. It is a
// pass-through unless both the rate and the burst are configured.
func RateLimitMiddleware(conf *config.Configuration) gin.HandlerFunc {
	if conf.RateLimit.RequestsPerSecond == nil || conf.RateLimit.Burst == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	ttl := time.Hour
	if conf.RateLimit.CleanupIntervalSec != nil {
		ttl = time.Duration(*conf.RateLimit.CleanupIntervalSec) * time.Second
	}

	lmt := tollbooth.NewLimiter(*conf.RateLimit.RequestsPerSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: ttl,
	})
	lmt.SetBurst(*conf.RateLimit.Burst)

	return func(c *gin.Context) {
		if httpError := tollbooth.LimitByKeys(lmt, []string{limitKey(c)}); httpError != nil {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(httpError.StatusCode, gin.H{
				"error":  gin.H{"code": CodeRateLimited, "message": httpError.Message},
				"result": nil,
			})
			return
		}
		c.Next()
	}
}

// SecretKeyAuthMiddleware rejects requests whose X-Tally-Key header does not
// match the configured secret.
func SecretKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		conf, err := config.Fetch()
		if err != nil || conf.Server.SecretKey == "" {
			abort(c, apierror.NewAPIError(apierror.ErrInternalServer, CodeSecretKey, "secret key is not configured", nil))
			return
		}

		clientSecret := c.GetHeader(KeyHeader)
		if clientSecret == "" {
			abort(c, apierror.NewAPIError(apierror.ErrUnauthorized, CodeSecretKey, "missing secret key", nil))
			return
		}
		if !secureCompare(conf.Server.SecretKey, clientSecret) {
			abort(c, apierror.NewAPIError(apierror.ErrUnauthorized, CodeSecretKey, "invalid secret key", nil))
			return
		}

		c.Next()
	}
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
