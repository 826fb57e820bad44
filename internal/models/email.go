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

// Package models defines the data structures shared across the CRM bridge:
// mailbox snapshots, CRM entities, request/response DTOs and their enums.
package models

import (
	"strings"
	"time"

	"github.com/bcem/crmbridge/internal/htmltext"
)

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// AttachmentInfo is attachment metadata as reported by the mailbox host.
type AttachmentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int    `json:"size"`
	ContentType string `json:"contentType"`
}

// Body content types reported by the mailbox host.
const (
	BodyTypeText = "text"
	BodyTypeHTML = "html"
)

// EmailContext is a read-only snapshot of the email under inspection.
type EmailContext struct {
	ItemID            string           `json:"itemId"`
	Subject           string           `json:"subject"`
	Body              string           `json:"body"`
	BodyType          string           `json:"bodyType,omitempty"`
	ReceivedTime      time.Time        `json:"receivedTime"`
	Sender            EmailAddress     `json:"sender"`
	ToRecipients      []EmailAddress   `json:"toRecipients"`
	CcRecipients      []EmailAddress   `json:"ccRecipients"`
	BccRecipients     []EmailAddress   `json:"bccRecipients"`
	Attachments       []AttachmentInfo `json:"attachments"`
	ConversationID    string           `json:"conversationId"`
	ConversationTopic string           `json:"conversationTopic"`
	Importance        Importance       `json:"importance"`
	IsRead            bool             `json:"isRead"`
}

// PlainBody returns the body as plain text, converting HTML bodies.
func (e EmailContext) PlainBody() string {
	if strings.EqualFold(e.BodyType, BodyTypeHTML) {
		return htmltext.Extract(e.Body)
	}
	return e.Body
}

// MatchResult is a candidate record surfaced by the match engine.
type MatchResult struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	EntityType   string  `json:"entityType"`
	Score        float64 `json:"score"`
	PrimaryEmail string  `json:"primaryEmail"`
}

// LinkRequest asks for an email to be linked to a CRM record.
type LinkRequest struct {
	EmailID          string       `json:"emailId"`
	EmailContext     EmailContext `json:"emailContext"`
	TargetRecordID   string       `json:"targetRecordId"`
	TargetEntityType string       `json:"targetEntityType"`
	UserID           string       `json:"userId"`
}

// LinkResult is the outcome of a link attempt.
type LinkResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ActivityID string `json:"activityId,omitempty"`
}
