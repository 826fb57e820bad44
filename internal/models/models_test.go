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

package models

import "testing"

func TestParseImportance(t *testing.T) {
	tests := map[string]Importance{
		"high":   ImportanceHigh,
		"HIGH":   ImportanceHigh,
		" Low ":  ImportanceLow,
		"normal": ImportanceNormal,
		"":       ImportanceNormal,
		"urgent": ImportanceNormal,
	}
	for in, want := range tests {
		if got := ParseImportance(in); got != want {
			t.Errorf("ParseImportance(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEntityType(t *testing.T) {
	if got := ParseEntityType("contact"); got != EntityContact {
		t.Errorf("ParseEntityType(contact) = %q, want Contact", got)
	}
	if got := ParseEntityType("account"); got != "" {
		t.Errorf("ParseEntityType(account) = %q, want empty", got)
	}
}

func TestEmailContext_PlainBody(t *testing.T) {
	text := EmailContext{Body: "<b>kept</b>", BodyType: BodyTypeText}
	if got := text.PlainBody(); got != "<b>kept</b>" {
		t.Errorf("text body changed: %q", got)
	}

	html := EmailContext{Body: "<p>please</p><p>review</p>", BodyType: "HTML"}
	if got := html.PlainBody(); got != "please\nreview" {
		t.Errorf("PlainBody() = %q, want %q", got, "please\nreview")
	}
}

func TestContactRecord(t *testing.T) {
	c := &Contact{ID: "id-1", FirstName: "Alice", LastName: "A.", Email: "alice@example.com"}
	r := c.Record()
	if r.ID != "id-1" || r.Type != EntityContact || r.Name != "Alice A." {
		t.Errorf("Record() = %+v", r)
	}
}
