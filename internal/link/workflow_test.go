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

package link

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/crmbridge/internal/crm"
	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/store"
)

// --- Mock logger ---

type mockLogger struct {
	mu    sync.Mutex
	calls []models.CreateActivityRequest
	res   result.Result[*models.Activity]
}

func (m *mockLogger) LogActivity(_ context.Context, req models.CreateActivityRequest) result.Result[*models.Activity] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	return m.res
}

func TestLink_MissingTarget(t *testing.T) {
	for _, target := range []string{"", "   "} {
		logger := &mockLogger{}
		got := NewWorkflow(logger).Link(context.Background(), models.LinkRequest{TargetRecordID: target})

		if got.Success {
			t.Errorf("Link(%q) succeeded", target)
		}
		if got.Message != MsgMissingTarget {
			t.Errorf("Message = %q, want %q", got.Message, MsgMissingTarget)
		}
		if len(logger.calls) != 0 {
			t.Errorf("store called %d times for blank target", len(logger.calls))
		}
	}
}

func TestLink_MalformedTarget(t *testing.T) {
	logger := &mockLogger{}
	got := NewWorkflow(logger).Link(context.Background(), models.LinkRequest{TargetRecordID: "not-a-guid"})

	if got.Success {
		t.Fatal("expected failure")
	}
	if got.Message != "Failed to link email: invalid target record id" {
		t.Errorf("Message = %q", got.Message)
	}
	if len(logger.calls) != 0 {
		t.Error("store called for malformed target")
	}
}

func TestLink_BuildsEmailActivity(t *testing.T) {
	target := uuid.NewString()
	received := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	logger := &mockLogger{res: result.Created(&models.Activity{ID: "act-1"})}

	got := NewWorkflow(logger).Link(context.Background(), models.LinkRequest{
		TargetRecordID:   target,
		TargetEntityType: "contact",
		EmailContext: models.EmailContext{
			Subject:      "Invoice Q3",
			Body:         "please review",
			ReceivedTime: received,
		},
	})

	if !got.Success || got.Message != MsgLinked || got.ActivityID != "act-1" {
		t.Fatalf("Link = %+v", got)
	}
	if len(logger.calls) != 1 {
		t.Fatalf("expected 1 LogActivity call, got %d", len(logger.calls))
	}

	req := logger.calls[0]
	if req.Type != models.ActivityEmail {
		t.Errorf("Type = %q, want Email", req.Type)
	}
	if req.Subject != "Invoice Q3" || req.Description != "please review" {
		t.Errorf("subject/description = %q/%q", req.Subject, req.Description)
	}
	if req.StartAt == nil || !req.StartAt.Equal(received) || req.EndAt == nil || !req.EndAt.Equal(received) {
		t.Errorf("StartAt/EndAt = %v/%v, want %v", req.StartAt, req.EndAt, received)
	}
	if len(req.RelatedEntities) != 1 || req.RelatedEntities[0].ID != target || req.RelatedEntities[0].Type != models.EntityContact {
		t.Errorf("RelatedEntities = %+v", req.RelatedEntities)
	}
	if req.ContactID != target {
		t.Errorf("ContactID = %q, want %q", req.ContactID, target)
	}
}

func TestLink_LeadTargetHasNoContactID(t *testing.T) {
	logger := &mockLogger{res: result.Created(&models.Activity{ID: "act-2"})}

	NewWorkflow(logger).Link(context.Background(), models.LinkRequest{
		TargetRecordID:   uuid.NewString(),
		TargetEntityType: "Lead",
	})

	if len(logger.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(logger.calls))
	}
	if logger.calls[0].ContactID != "" {
		t.Errorf("ContactID = %q, want empty for a lead", logger.calls[0].ContactID)
	}
	if logger.calls[0].StartAt != nil {
		t.Error("StartAt set for zero received time")
	}
}

func TestLink_StoreFailure(t *testing.T) {
	logger := &mockLogger{res: result.Internal[*models.Activity]("log activity failed")}

	got := NewWorkflow(logger).Link(context.Background(), models.LinkRequest{TargetRecordID: uuid.NewString()})

	if got.Success {
		t.Fatal("expected failure")
	}
	if got.Message != "Failed to link email: log activity failed" {
		t.Errorf("Message = %q", got.Message)
	}
	if got.ActivityID != "" {
		t.Errorf("ActivityID = %q, want empty", got.ActivityID)
	}
}

func TestLink_ShowsOnTimeline(t *testing.T) {
	ctx := context.Background()
	svc := crm.NewService(crm.Config{Store: store.NewMemory()})

	contact := svc.CreateContact(ctx, models.CreateContactRequest{
		FirstName: "Alice", LastName: "A.", Email: "alice@example.com",
	})
	if !contact.Success {
		t.Fatalf("create contact: %s", contact.Error)
	}

	got := NewWorkflow(svc).Link(ctx, models.LinkRequest{
		TargetRecordID:   contact.Data.ID,
		TargetEntityType: "Contact",
		EmailContext:     models.EmailContext{Subject: "Invoice Q3", Body: "please review"},
	})
	if !got.Success {
		t.Fatalf("Link failed: %s", got.Message)
	}

	timeline := svc.ActivityTimeline(ctx, contact.Data.ID)
	if !timeline.Success || len(timeline.Data) != 1 {
		t.Fatalf("timeline = %+v", timeline)
	}
	if timeline.Data[0].ID != got.ActivityID || timeline.Data[0].Type != models.ActivityEmail {
		t.Errorf("timeline entry = %+v", timeline.Data[0])
	}
}

func TestLink_SubjectFitsActivityRules(t *testing.T) {
	ctx := context.Background()
	svc := crm.NewService(crm.Config{Store: store.NewMemory()})

	contact := svc.CreateContact(ctx, models.CreateContactRequest{FirstName: "Alice", LastName: "A."})
	if !contact.Success {
		t.Fatalf("create contact: %s", contact.Error)
	}

	long := strings.Repeat("é", 250)
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"empty", "", NoSubject},
		{"whitespace", "  \t ", NoSubject},
		{"too long", long, strings.Repeat("é", maxSubject)},
		{"padded", "  Invoice Q3 ", "Invoice Q3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewWorkflow(svc).Link(ctx, models.LinkRequest{
				TargetRecordID:   contact.Data.ID,
				TargetEntityType: "Contact",
				EmailContext:     models.EmailContext{Subject: tt.subject, Body: "body"},
			})
			if !got.Success {
				t.Fatalf("Link failed: %s", got.Message)
			}

			timeline := svc.ActivityTimeline(ctx, contact.Data.ID)
			if !timeline.Success {
				t.Fatalf("timeline: %s", timeline.Error)
			}
			var subject string
			for _, a := range timeline.Data {
				if a.ID == got.ActivityID {
					subject = a.Subject
				}
			}
			if subject != tt.want {
				t.Errorf("Subject = %q (%d runes), want %d runes", subject, len([]rune(subject)), len([]rune(tt.want)))
			}
		})
	}
}

func TestLink_UpperCaseTarget(t *testing.T) {
	ctx := context.Background()
	svc := crm.NewService(crm.Config{Store: store.NewMemory()})

	contact := svc.CreateContact(ctx, models.CreateContactRequest{FirstName: "Alice", LastName: "A."})
	if !contact.Success {
		t.Fatalf("create contact: %s", contact.Error)
	}

	got := NewWorkflow(svc).Link(ctx, models.LinkRequest{
		TargetRecordID:   " " + strings.ToUpper(contact.Data.ID),
		TargetEntityType: "Contact",
		EmailContext:     models.EmailContext{Subject: "Invoice Q3"},
	})
	if !got.Success {
		t.Fatalf("Link failed: %s", got.Message)
	}

	timeline := svc.ActivityTimeline(ctx, contact.Data.ID)
	if !timeline.Success || len(timeline.Data) != 1 {
		t.Fatalf("timeline = %+v", timeline)
	}
	if timeline.Data[0].ContactID != contact.Data.ID {
		t.Errorf("ContactID = %q, want %q", timeline.Data[0].ContactID, contact.Data.ID)
	}
}
