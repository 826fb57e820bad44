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

package sagex3

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bcem/crmbridge/internal/cache"
	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
)

// recorder captures requests seen by a fake ERP.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func (r *recorder) add(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, body)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func fakeERP(t *testing.T, status int, body string) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Config{
		BaseURL:    server.URL + "/",
		Username:   "svc",
		Password:   "secret",
		HTTPClient: server.Client(),
	})
	return c, rec
}

func TestCreateLead_SendsPayloadAndParsesID(t *testing.T) {
	c, rec := fakeERP(t, http.StatusCreated, `{"$key":"LD-0042"}`)

	got := c.CreateLead(context.Background(), models.CreateLeadRequest{
		FirstName: "Alice",
		LastName:  "A.",
		Email:     "alice@example.com",
		Company:   "Acme",
	})

	if !got.Success {
		t.Fatalf("CreateLead failed: %s", got.Error)
	}
	if got.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", got.StatusCode)
	}
	if got.Data.ExternalID != "LD-0042" {
		t.Errorf("ExternalID = %q, want LD-0042", got.Data.ExternalID)
	}
	if got.Data.Source != models.SourceOther {
		t.Errorf("Source = %q, want Other", got.Data.Source)
	}

	req := rec.requests[0]
	if req.Method != http.MethodPost || req.URL.Path != "/sdata/crm/lead" {
		t.Errorf("request = %s %s", req.Method, req.URL.Path)
	}
	if user, pass, ok := req.BasicAuth(); !ok || user != "svc" || pass != "secret" {
		t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
	}

	var sent map[string]any
	if err := json.Unmarshal(rec.bodies[0], &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent["firstName"] != "Alice" || sent["company"] != "Acme" || sent["source"] != "Other" {
		t.Errorf("sent payload = %v", sent)
	}
}

func TestCreateContact_ValidationSkipsERP(t *testing.T) {
	c, rec := fakeERP(t, http.StatusCreated, `{}`)

	got := c.CreateContact(context.Background(), models.CreateContactRequest{Email: "not-an-email"})

	if got.Kind != result.KindValidation {
		t.Fatalf("Kind = %q, want validation_error", got.Kind)
	}
	if len(got.ValidationErrors) < 3 {
		t.Errorf("ValidationErrors = %v, want first name, last name and email", got.ValidationErrors)
	}
	if rec.count() != 0 {
		t.Error("ERP called for invalid request")
	}
}

func TestCreateLead_WhitespaceNamesSkipERP(t *testing.T) {
	c, rec := fakeERP(t, http.StatusCreated, `{}`)

	got := c.CreateLead(context.Background(), models.CreateLeadRequest{FirstName: " ", LastName: "\t\n"})

	if got.Kind != result.KindValidation {
		t.Fatalf("Kind = %q, want validation_error", got.Kind)
	}
	if len(got.ValidationErrors) != 2 {
		t.Errorf("ValidationErrors = %v, want first and last name", got.ValidationErrors)
	}
	if rec.count() != 0 {
		t.Error("ERP called for blank names")
	}
}

func TestCreateOpportunity_NonSuccessIsUpstream(t *testing.T) {
	c, _ := fakeERP(t, http.StatusUnprocessableEntity, `{"$diagnoses":[{"message":"bad stage"}]}`)

	got := c.CreateOpportunity(context.Background(), models.CreateOpportunityRequest{Name: "Renewal"})

	if got.Success {
		t.Fatal("expected failure")
	}
	if got.StatusCode != http.StatusBadGateway || got.Kind != result.KindUpstream {
		t.Errorf("status/kind = %d/%q, want 502/upstream_failure", got.StatusCode, got.Kind)
	}
	if got.Detail != `{"$diagnoses":[{"message":"bad stage"}]}` {
		t.Errorf("Detail = %q, want raw body", got.Detail)
	}
	if got.Data != nil {
		t.Error("failed result carries data")
	}
}

func TestTransportFailureIsInternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second})
	got := c.CreateContact(context.Background(), models.CreateContactRequest{FirstName: "A", LastName: "B"})

	if got.Kind != result.KindInternal || got.StatusCode != http.StatusInternalServerError {
		t.Errorf("kind/status = %q/%d, want internal_error/500", got.Kind, got.StatusCode)
	}
	if got.Error != "create contact failed" {
		t.Errorf("Error = %q", got.Error)
	}
}

func TestSearch_ParsesBothShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []models.EntityReference
	}{
		{
			name: "array",
			body: `[{"id":"C1","type":"contact","name":"Alice"},{"name":"no id"}]`,
			want: []models.EntityReference{{ID: "C1", Type: models.EntityContact, Name: "Alice"}},
		},
		{
			name: "sdata feed",
			body: `{"$resources":[{"$key":"L7","$kind":"Lead","$descriptor":"Acme lead"},{"code":42}]}`,
			want: []models.EntityReference{
				{ID: "L7", Type: models.EntityLead, Name: "Acme lead"},
				{ID: "42"},
			},
		},
		{name: "garbage", body: `not json`, want: []models.EntityReference{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := fakeERP(t, http.StatusOK, tt.body)
			got := c.Search(context.Background(), "acme")
			if !got.Success {
				t.Fatalf("Search failed: %s", got.Error)
			}
			if len(got.Data) != len(tt.want) {
				t.Fatalf("got %d refs, want %d: %+v", len(got.Data), len(tt.want), got.Data)
			}
			for i := range tt.want {
				if got.Data[i] != tt.want[i] {
					t.Errorf("ref[%d] = %+v, want %+v", i, got.Data[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearch_CachesResults(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		if got := r.URL.Query().Get("q"); got != "Acme Corp" {
			t.Errorf("q = %q, want %q", got, "Acme Corp")
		}
		io.WriteString(w, `[{"id":"C1","name":"Acme"}]`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, HTTPClient: server.Client(), Cache: cache.NewMemory()})

	for i := 0; i < 3; i++ {
		got := c.Search(context.Background(), "Acme Corp")
		if !got.Success || len(got.Data) != 1 {
			t.Fatalf("Search #%d = %+v", i, got)
		}
	}
	if rec.count() != 1 {
		t.Errorf("ERP called %d times, want 1", rec.count())
	}
}

func TestSearch_BlankQuery(t *testing.T) {
	c, rec := fakeERP(t, http.StatusOK, `[]`)
	got := c.Search(context.Background(), "  ")
	if got.Kind != result.KindValidation || got.Error != "Query is required" {
		t.Errorf("Search(blank) = %+v", got)
	}
	if rec.count() != 0 {
		t.Error("ERP called for blank query")
	}
}

func TestCreateActivity(t *testing.T) {
	c, rec := fakeERP(t, http.StatusCreated, `{"ActivityId":"ACT-9"}`)
	received := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

	a := ActivityFromEmail(models.EmailContext{
		ItemID:       "AAMk-1",
		Subject:      "Invoice Q3",
		Body:         "<p>please review</p>",
		BodyType:     models.BodyTypeHTML,
		ReceivedTime: received,
	}, "CT001", "jdoe")

	got := c.CreateActivity(context.Background(), a)
	if !got.Success || got.Data.ActivityID != "ACT-9" {
		t.Fatalf("CreateActivity = %+v", got)
	}

	var sent map[string]any
	if err := json.Unmarshal(rec.bodies[0], &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	want := map[string]string{
		"YSUBJECT":   "Invoice Q3",
		"YHTMLBODY":  "<p>please review</p>",
		"YTEXTBODY":  "please review",
		"BPCCT":      "CT001",
		"YDIR":       "IN",
		"YOWNER":     "jdoe",
		"YMESSAGEID": "AAMk-1",
		"YSENTDATE":  "2026-03-04T09:30:00Z",
	}
	for k, v := range want {
		if sent[k] != v {
			t.Errorf("%s = %v, want %q", k, sent[k], v)
		}
	}
}

func TestCreateActivity_RequiresSubject(t *testing.T) {
	c, rec := fakeERP(t, http.StatusCreated, `{}`)
	got := c.CreateActivity(context.Background(), YActivity{})
	if got.Kind != result.KindValidation {
		t.Errorf("Kind = %q, want validation_error", got.Kind)
	}
	if rec.count() != 0 {
		t.Error("ERP called for invalid activity")
	}
}

func TestUploadAttachment(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{"AttachmentId", `{"AttachmentId":"ATT-1","id":"ignored"}`, "ATT-1"},
		{"lower id", `{"id":"ATT-2"}`, "ATT-2"},
		{"numeric Id", `{"Id":17}`, "17"},
		{"no id", `{"ok":true}`, ""},
		{"not json", `stored`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := fakeERP(t, http.StatusOK, tt.body)
			got := c.UploadAttachment(context.Background(), "act 1", "report.pdf", []byte("%PDF-1.7"))
			if !got.Success {
				t.Fatalf("UploadAttachment failed: %s", got.Error)
			}
			if got.Data.AttachmentID != tt.wantID {
				t.Errorf("AttachmentID = %q, want %q", got.Data.AttachmentID, tt.wantID)
			}
			if got.Data.Raw != tt.body {
				t.Errorf("Raw = %q, want %q", got.Data.Raw, tt.body)
			}

			req := rec.requests[0]
			if req.URL.EscapedPath() != "/sdata/crm/activity/act%201/attachments" {
				t.Errorf("path = %q", req.URL.EscapedPath())
			}
			var sent attachmentPayload
			if err := json.Unmarshal(rec.bodies[0], &sent); err != nil {
				t.Fatalf("decode sent body: %v", err)
			}
			decoded, err := base64.StdEncoding.DecodeString(sent.ContentBase64)
			if err != nil || string(decoded) != "%PDF-1.7" {
				t.Errorf("contentBase64 = %q (%v)", sent.ContentBase64, err)
			}
			if sent.FileName != "report.pdf" {
				t.Errorf("fileName = %q", sent.FileName)
			}
		})
	}
}
