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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/identity"
	"github.com/blnkfinance/tally/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		user, ok := User(c)
		if ok {
			c.JSON(http.StatusOK, gin.H{"id": user.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})
	return r
}

func TestIdentityMiddleware(t *testing.T) {
	resolver := identity.StaticResolver{"tok": {ID: 42}}
	r := newRouter(IdentityMiddleware(resolver))

	tests := []struct {
		name   string
		token  string
		status int
		code   int
	}{
		{"valid token", "tok", http.StatusOK, 0},
		{"missing token", "", http.StatusUnauthorized, apierror.CodeMissingToken},
		{"unknown token", "other", http.StatusUnauthorized, identity.CodeUserMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.token != "" {
				req.Header.Set(TokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code == 0 {
				var body map[string]int64
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, int64(42), body["id"])
				return
			}
			var body struct {
				Error struct {
					Code int `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestUserWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := User(c)
	assert.False(t, ok)

	c.Set(userContextKey, &model.UserInfo{ID: 1})
	user, ok := User(c)
	require.True(t, ok)
	assert.Equal(t, int64(1), user.ID)
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	config.MockConfig(&config.Configuration{Server: config.ServerConfig{SecretKey: "s3cret"}})
	r := newRouter(SecretKeyAuthMiddleware())

	tests := []struct {
		key    string
		status int
	}{
		{"s3cret", http.StatusOK},
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if tt.key != "" {
			req.Header.Set(KeyHeader, tt.key)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, tt.key)
	}

	config.MockConfig(&config.Configuration{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	conf := &config.Configuration{}
	conf.RateLimit.RequestsPerSecond = ptr.Float64(1)
	conf.RateLimit.Burst = ptr.Int(1)
	conf.RateLimit.CleanupIntervalSec = ptr.Int(60)
	r := newRouter(RateLimitMiddleware(conf))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Contains(t, statuses[1:], http.StatusTooManyRequests)
}

func TestRateLimitPerToken(t *testing.T) {
	conf := &config.Configuration{}
	conf.RateLimit.RequestsPerSecond = ptr.Float64(1)
	conf.RateLimit.Burst = ptr.Int(1)
	r := newRouter(RateLimitMiddleware(conf))

	send := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(TokenHeader, token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("a").Code)
	assert.Equal(t, http.StatusOK, send("b").Code)

	rec := send("a")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeRateLimited, body.Error.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRouter(RateLimitMiddleware(&config.Configuration{}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
