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

package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhook = "https://hooks.slack.test/services/T0/B0/x"

func TestSlackPayload(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	msg := slackPayload("Tally", errors.New("db down"), at)

	require.Len(t, msg.Blocks, 3)
	assert.Equal(t, "Error From Tally 🐞", msg.Blocks[0].Text.Text)
	assert.Equal(t, "*Error:*\ndb down", msg.Blocks[1].Fields[0].Text)
	assert.Equal(t, "*Time:*\n"+at.Format(time.RFC822), msg.Blocks[2].Fields[0].Text)
}

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var received slackMessage
	httpmock.RegisterResponder("POST", webhook, func(req *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
			return httpmock.NewStringResponse(400, "invalid_payload"), nil
		}
		return httpmock.NewStringResponse(200, "ok"), nil
	})

	err := SlackNotification(webhook, "Tally", errors.New(`quote " inside`))
	require.NoError(t, err)
	require.Len(t, received.Blocks, 3)
	assert.True(t, strings.Contains(received.Blocks[1].Fields[0].Text, `quote " inside`))
}

func TestSlackNotificationRejected(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", webhook, httpmock.NewStringResponder(403, "invalid_token"))

	err := SlackNotification(webhook, "Tally", errors.New("boom"))
	assert.Error(t, err)
}

func TestNotifyErrorSendsWhenConfigured(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	sent := make(chan struct{}, 1)
	httpmock.RegisterResponder("POST", webhook, func(req *http.Request) (*http.Response, error) {
		sent <- struct{}{}
		return httpmock.NewStringResponse(200, "ok"), nil
	})

	cnf := &config.Configuration{ProjectName: "Tally"}
	cnf.Notification.Slack.WebhookUrl = webhook
	config.MockConfig(cnf)

	NotifyError(errors.New("janitor failed"))

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a slack notification")
	}
}
