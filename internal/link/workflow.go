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

// Package link attaches an email to a CRM record by logging it as an Email
// activity on that record.
package link

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/validation"
)

// Outcome messages.
const (
	MsgMissingTarget = "Missing target record ID"
	MsgLinked        = "Email successfully linked"
	msgFailedPrefix  = "Failed to link email: "
)

// NoSubject stands in for a blank email subject; activities require one.
const NoSubject = "(no subject)"

// maxSubject matches the activity subject limit, counted in runes.
const maxSubject = 200

// ActivityLogger persists activities; crm.Service satisfies it.
type ActivityLogger interface {
	LogActivity(ctx context.Context, req models.CreateActivityRequest) result.Result[*models.Activity]
}

// Workflow links emails to records. It is stateless.
type Workflow struct {
	activities ActivityLogger
}

// NewWorkflow creates a link workflow.
func NewWorkflow(activities ActivityLogger) *Workflow {
	return &Workflow{activities: activities}
}

// Link logs req's email as an activity on the target record. It never
// retries; every failure is reported in the returned LinkResult.
func (w *Workflow) Link(ctx context.Context, req models.LinkRequest) models.LinkResult {
	target := validation.NormalizeID(req.TargetRecordID)
	if target == "" {
		return models.LinkResult{Message: MsgMissingTarget}
	}
	if !validation.IsID(target) {
		return failed("invalid target record id")
	}

	res := w.activities.LogActivity(ctx, Activity(req.EmailContext, target, req.TargetEntityType))
	if !res.Success {
		slog.Warn("email link failed",
			"item_id", req.EmailContext.ItemID,
			"target", target,
			"user_id", req.UserID,
			"error", res.Error,
		)
		return failed(res.Error)
	}

	slog.Info("email linked",
		"item_id", req.EmailContext.ItemID,
		"target", target,
		"activity_id", res.Data.ID,
	)
	return models.LinkResult{Success: true, Message: MsgLinked, ActivityID: res.Data.ID}
}

// Activity builds the Email activity recorded for a linked message.
func Activity(email models.EmailContext, targetID, targetType string) models.CreateActivityRequest {
	entityType := models.ParseEntityType(targetType)

	req := models.CreateActivityRequest{
		Type:        models.ActivityEmail,
		Subject:     subject(email.Subject),
		Description: email.Body,
		RelatedEntities: []models.EntityReference{
			{ID: targetID, Type: entityType},
		},
	}
	if !email.ReceivedTime.IsZero() {
		at := email.ReceivedTime
		req.StartAt = &at
		req.EndAt = &at
	}
	if entityType == models.EntityContact {
		req.ContactID = targetID
	}
	return req
}

func subject(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoSubject
	}
	if r := []rune(s); len(r) > maxSubject {
		return strings.TrimSpace(string(r[:maxSubject]))
	}
	return s
}

func failed(cause string) models.LinkResult {
	return models.LinkResult{Message: msgFailedPrefix + cause}
}
