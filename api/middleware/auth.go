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
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/identity"
	"github.com/blnkfinance/tally/model"
	"github.com/gin-gonic/gin"
)

const (
	// TokenHeader carries the caller token.
	TokenHeader = "token"

	userContextKey = "tally.user"
)

// IdentityMiddleware resolves the token header into the calling user. A
// request without a resolvable token is answered with the error envelope.
func IdentityMiddleware(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolver.Resolve(c.Request.Context(), c.GetHeader(TokenHeader))
		if err != nil {
			apiErr, ok := apierror.As(err)
			if !ok {
				apiErr = apierror.NewAPIError(apierror.ErrUnauthorized, apierror.CodeIdentityLookup, err.Error(), nil)
			}
			c.AbortWithStatusJSON(apierror.MapErrorToHTTPStatus(apiErr), gin.H{"error": apiErr, "result": nil})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// User returns the caller stored by IdentityMiddleware.
func User(c *gin.Context) (*model.UserInfo, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.UserInfo)
	return user, ok && user != nil
}
