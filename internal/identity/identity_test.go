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

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const endpoint = "http://identity.test/Api"

func TestResolveCachesUser(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", endpoint, func(req *http.Request) (*http.Response, error) {
		var body rpcRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Method != "user_info" {
			return httpmock.NewStringResponse(400, ""), nil
		}
		if req.Header.Get("token") != "tok-42" {
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"error": map[string]interface{}{"code": 1001, "message": "bad token"},
			})
		}
		return httpmock.NewJsonResponse(200, map[string]interface{}{
			"result": map[string]interface{}{
				"user": map[string]interface{}{"id": 42, "first_name": "Ann", "last_name": "Lee", "type": "agent"},
			},
		})
	})

	r := NewHTTPResolver(endpoint, time.Second, time.Minute)
	user, err := r.Resolve(context.Background(), "tok-42")
	require.NoError(t, err)
	assert.Equal(t, model.UserInfo{ID: 42, FirstName: "Ann", LastName: "Lee", Type: "agent"}, *user)

	_, err = r.Resolve(context.Background(), " tok-42 ")
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	r.Forget("tok-42")
	_, err = r.Resolve(context.Background(), "tok-42")
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestResolveErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", endpoint, func(req *http.Request) (*http.Response, error) {
		switch req.Header.Get("token") {
		case "rpc-error":
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"error": map[string]interface{}{"code": 1001, "message": "bad token"},
			})
		case "no-user":
			return httpmock.NewJsonResponse(200, map[string]interface{}{"result": map[string]interface{}{}})
		default:
			return httpmock.NewStringResponse(500, "down"), nil
		}
	})

	r := NewHTTPResolver(endpoint, time.Second, time.Minute)

	tests := []struct {
		token string
		kind  apierror.ErrorKind
		code  int
	}{
		{"", apierror.ErrUnauthorized, apierror.CodeMissingToken},
		{"rpc-error", apierror.ErrUnauthorized, 1001},
		{"no-user", apierror.ErrUnauthorized, CodeUserMissing},
		{"outage", apierror.ErrInternalServer, apierror.CodeIdentityLookup},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.token)
			apiErr, ok := apierror.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"dev": {ID: 1, FirstName: "Dev"}}

	user, err := r.Resolve(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	_, err = r.Resolve(context.Background(), "other")
	assert.True(t, apierror.IsKind(err, apierror.ErrUnauthorized))
}
