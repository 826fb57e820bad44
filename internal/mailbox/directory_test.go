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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestMailboxes_Explicit verifies that an include list skips Graph entirely.
func TestMailboxes_Explicit(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	d := NewDirectory(server.Client(), server.URL)

	got, err := d.Mailboxes(context.Background(),
		[]string{"alice@example.com", " ", "Noreply@Example.com", "bob@example.com"},
		[]string{"noreply@example.com"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("Graph should not be called with an explicit list")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 mailboxes, got %d: %+v", len(got), got)
	}
	if got[0].Mail != "alice@example.com" || got[0].UserPrincipalName != "alice@example.com" {
		t.Errorf("first mailbox = %+v", got[0])
	}
}

// TestMailboxes_Discover verifies paging, mailbox-less users and exclusions.
func TestMailboxes_Discover(t *testing.T) {
	var sawConsistency bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawConsistency = r.Header.Get("ConsistencyLevel") == "eventual"
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/users":
			json.NewEncoder(w).Encode(usersPage{
				Value: []Mailbox{
					{ID: "1", Mail: "alice@example.com", DisplayName: "Alice"},
					{ID: "2", Mail: "BOB@example.com", DisplayName: "Bob"},
				},
				NextLink: "http://" + r.Host + "/page2",
			})
		case "/page2":
			json.NewEncoder(w).Encode(usersPage{
				Value: []Mailbox{
					{ID: "3", Mail: "carol@example.com", DisplayName: "Carol"},
					{ID: "4", DisplayName: "Service Account"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	got, err := NewDirectory(server.Client(), server.URL).Mailboxes(context.Background(), nil, []string{"bob@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawConsistency {
		t.Error("ConsistencyLevel header not sent")
	}

	names := map[string]bool{}
	for _, m := range got {
		names[m.DisplayName] = true
	}
	if len(got) != 2 || !names["Alice"] || !names["Carol"] {
		t.Errorf("expected Alice and Carol, got %v", names)
	}
}

func TestMailboxes_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewDirectory(server.Client(), server.URL).Mailboxes(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
}
