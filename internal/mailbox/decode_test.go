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

package mailbox

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bcem/crmbridge/internal/models"
)

func TestDecode(t *testing.T) {
	payload := `{
		"itemId": "AAMkAD=",
		"subject": "Invoice Q3",
		"body": "<p>please review</p>",
		"bodyType": "HTML",
		"receivedTime": "2026-03-04T09:30:00.000Z",
		"sender": {"name": "Alice A.", "address": "alice@example.com"},
		"toRecipients": [{"name": "Sales", "address": "sales@example.com"}],
		"attachments": [{"id": "att-1", "name": "q3.pdf", "size": 2048, "contentType": "application/pdf"}],
		"conversationId": "conv-1",
		"conversationTopic": "Invoice Q3",
		"importance": "high",
		"isRead": true
	}`

	got, err := Decode(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.ItemID != "AAMkAD=" || got.Subject != "Invoice Q3" {
		t.Errorf("itemId/subject = %q/%q", got.ItemID, got.Subject)
	}
	if got.BodyType != models.BodyTypeHTML {
		t.Errorf("BodyType = %q, want html", got.BodyType)
	}
	if want := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC); !got.ReceivedTime.Equal(want) {
		t.Errorf("ReceivedTime = %v, want %v", got.ReceivedTime, want)
	}
	if got.Sender.Address != "alice@example.com" || got.Sender.Name != "Alice A." {
		t.Errorf("Sender = %+v", got.Sender)
	}
	if len(got.ToRecipients) != 1 || len(got.CcRecipients) != 0 || got.CcRecipients == nil {
		t.Errorf("recipients to=%v cc=%v", got.ToRecipients, got.CcRecipients)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Size != 2048 {
		t.Errorf("Attachments = %+v", got.Attachments)
	}
	if got.Importance != models.ImportanceHigh {
		t.Errorf("Importance = %q, want High", got.Importance)
	}
	if !got.IsRead {
		t.Error("IsRead = false")
	}
}

func TestDecode_Defaults(t *testing.T) {
	got, err := Decode(strings.NewReader(`{"subject":"x","receivedTime":"yesterday","importance":"urgent"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.ReceivedTime.IsZero() {
		t.Errorf("ReceivedTime = %v, want zero", got.ReceivedTime)
	}
	if got.Importance != models.ImportanceNormal {
		t.Errorf("Importance = %q, want Normal", got.Importance)
	}
	if got.Sender != (models.EmailAddress{}) {
		t.Errorf("Sender = %+v, want zero", got.Sender)
	}
}

func TestDecode_HostError(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"error":"No item selected"}`))
	if !errors.Is(err, ErrHost) {
		t.Fatalf("err = %v, want ErrHost", err)
	}
	if !strings.Contains(err.Error(), "No item selected") {
		t.Errorf("err = %v, want host message", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"subject":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
