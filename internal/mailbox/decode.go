// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mailbox supplies EmailContext snapshots: decoded from the JSON
// the Outlook add-in posts, or fetched server side from Microsoft Graph.
// It also lists mailboxes and message ids for the backfill.
package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bcem/crmbridge/internal/models"
)

// ErrHost is returned when the add-in reports that it could not read the
// current item.
var ErrHost = errors.New("mailbox host error")

// hostPayload is the item snapshot serialized by the add-in script.
type hostPayload struct {
	Error             string                  `json:"error"`
	ItemID            string                  `json:"itemId"`
	Subject           string                  `json:"subject"`
	Body              string                  `json:"body"`
	BodyType          string                  `json:"bodyType"`
	ReceivedTime      string                  `json:"receivedTime"`
	Sender            *models.EmailAddress    `json:"sender"`
	ToRecipients      []models.EmailAddress   `json:"toRecipients"`
	CcRecipients      []models.EmailAddress   `json:"ccRecipients"`
	BccRecipients     []models.EmailAddress   `json:"bccRecipients"`
	Attachments       []models.AttachmentInfo `json:"attachments"`
	ConversationID    string                  `json:"conversationId"`
	ConversationTopic string                  `json:"conversationTopic"`
	Importance        string                  `json:"importance"`
	IsRead            bool                    `json:"isRead"`
}

// Decode parses an add-in item snapshot. Importance defaults to Normal and
// an unparsable received time is left zero.
func Decode(r io.Reader) (models.EmailContext, error) {
	var p hostPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return models.EmailContext{}, fmt.Errorf("decode item: %w", err)
	}
	if p.Error != "" {
		return models.EmailContext{}, fmt.Errorf("%w: %s", ErrHost, p.Error)
	}

	email := models.EmailContext{
		ItemID:            p.ItemID,
		Subject:           p.Subject,
		Body:              p.Body,
		BodyType:          strings.ToLower(p.BodyType),
		ReceivedTime:      parseTime(p.ReceivedTime),
		ToRecipients:      nonNil(p.ToRecipients),
		CcRecipients:      nonNil(p.CcRecipients),
		BccRecipients:     nonNil(p.BccRecipients),
		Attachments:       nonNil(p.Attachments),
		ConversationID:    p.ConversationID,
		ConversationTopic: p.ConversationTopic,
		Importance:        models.ParseImportance(p.Importance),
		IsRead:            p.IsRead,
	}
	if p.Sender != nil {
		email.Sender = *p.Sender
	}
	return email, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
