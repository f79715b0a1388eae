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
	"net/http"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/request"
	"github.com/sirupsen/logrus"
)

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func slackPayload(project string, err error, at time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Error From " + project + " 🐞", Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Error:*\n" + err.Error()}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Time:*\n" + at.Format(time.RFC822)}}},
	}}
}

// SlackNotification posts err to the configured Slack webhook.
//
// Parameters:
// - webhookURL: The Slack incoming webhook.
// - project: The project name shown in the message header.
// - err: The error to be reported.
//
// Returns an error if the webhook could not be reached or rejected the message.
func SlackNotification(webhookURL, project string, err error) error {
	payload, encErr := request.ToJsonReq(slackPayload(project, err, time.Now()))
	if encErr != nil {
		return encErr
	}

	req, reqErr := http.NewRequest(http.MethodPost, webhookURL, payload)
	if reqErr != nil {
		return reqErr
	}

	// Slack answers with a plain "ok", nothing to decode.
	_, callErr := request.Call(req, nil)
	return callErr
}

// NotifyError logs systemError and forwards it to Slack when a webhook is
// configured. The notification is sent in the background.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Warn(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			if err := SlackNotification(conf.Notification.Slack.WebhookUrl, conf.ProjectName, systemError); err != nil {
				logrus.Warnf("slack notification failed: %v", err)
			}
		}
	}(systemError)
}
