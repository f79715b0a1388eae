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

// Package identity resolves caller tokens into user records.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/request"
	"github.com/blnkfinance/tally/model"
	"github.com/patrickmn/go-cache"
)

// CodeUserMissing is returned when the identity service knows no user for
// the token.
const CodeUserMissing = 2765430

// Resolver looks up the owner of a token.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.UserInfo, error)
}

type rpcRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
	ID      uint64                 `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type userInfoResponse struct {
	Result *struct {
		User *model.UserInfo `json:"user"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// HTTPResolver calls the user_info method of the identity service. Answers
// are cached per token.
type HTTPResolver struct {
	url    string
	client *request.Client
	cache  *cache.Cache
}

// NewHTTPResolver builds a resolver for url. Resolved users are kept for ttl.
func NewHTTPResolver(url string, timeout, ttl time.Duration) *HTTPResolver {
	return &HTTPResolver{
		url:    url,
		client: request.NewClient(timeout),
		cache:  cache.New(ttl, 2*ttl),
	}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Resolve returns the user owning token.
func (r *HTTPResolver) Resolve(ctx context.Context, token string) (*model.UserInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, apierror.CodeMissingToken,
			"token header is required", nil)
	}

	key := cacheKey(token)
	if cached, ok := r.cache.Get(key); ok {
		user := cached.(model.UserInfo)
		return &user, nil
	}

	body := rpcRequest{
		JSONRPC: "2.0",
		Method:  "user_info",
		Params:  map[string]interface{}{},
		ID:      rand.Uint64(),
	}
	var resp userInfoResponse
	if _, err := r.client.PostJSON(ctx, r.url, map[string]string{"token": token}, body, &resp); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeIdentityLookup,
			"could not reach the identity service", err.Error())
	}

	if resp.Error != nil {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, resp.Error.Code, resp.Error.Message, nil)
	}
	if resp.Result == nil || resp.Result.User == nil || resp.Result.User.ID <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, CodeUserMissing,
			"no user is associated with the token", nil)
	}

	user := *resp.Result.User
	r.cache.SetDefault(key, user)
	return &user, nil
}

// Forget drops the cached user of token.
func (r *HTTPResolver) Forget(token string) {
	r.cache.Delete(cacheKey(strings.TrimSpace(token)))
}

// StaticResolver maps fixed tokens to users. It backs local runs without an
// identity service.
type StaticResolver map[string]model.UserInfo

func (s StaticResolver) Resolve(_ context.Context, token string) (*model.UserInfo, error) {
	if token == "" {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, apierror.CodeMissingToken,
			"token header is required", nil)
	}
	user, ok := s[token]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, CodeUserMissing,
			"no user is associated with the token", nil)
	}
	return &user, nil
}
