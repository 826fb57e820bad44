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

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	FirstName string `validate:"required,notblank,max=5"`
	Email     string `validate:"omitempty,email"`
	Phone     string `validate:"omitempty,phone"`
	Kind      string `validate:"omitempty,oneof=A B"`
}

func TestStruct_Messages(t *testing.T) {
	v := New()

	assert.Nil(t, Struct(v, sample{FirstName: "Ann", Email: "ann@example.com", Phone: "+44 (20) 7946-0958"}))

	msgs := Struct(v, sample{Email: "not-an-email", Phone: "call me", Kind: "C"})
	assert.ElementsMatch(t, []string{
		"FirstName is required",
		"Email must be a valid email address",
		"Phone must be a valid phone number",
		"Kind must be one of: A, B",
	}, msgs)

	msgs = Struct(v, sample{FirstName: "Alexandra"})
	assert.Equal(t, []string{"FirstName must be at most 5 characters"}, msgs)

	msgs = Struct(v, sample{FirstName: " \t "})
	assert.Equal(t, []string{"FirstName is required"}, msgs)
}

func TestIsID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"8f14e45f-ceea-4c6a-9f1b-1c2d3e4f5a6b", true},
		{" 8f14e45f-ceea-4c6a-9f1b-1c2d3e4f5a6b ", true},
		{"8F14E45F-CEEA-4C6A-9F1B-1C2D3E4F5A6B", true},
		{"{8f14e45f-ceea-4c6a-9f1b-1c2d3e4f5a6b}", false},
		{"urn:uuid:8f14e45f-ceea-4c6a-9f1b-1c2d3e4f5a6b", false},
		{"8f14e45fceea4c6a9f1b1c2d3e4f5a6b", false},
		{"not-a-guid", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsID(tt.id); got != tt.want {
			t.Errorf("IsID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "8f14e45f-ceea-4c6a-9f1b-1c2d3e4f5a6b", NormalizeID(" 8F14E45F-CEEA-4C6A-9F1B-1C2D3E4F5A6B\n"))
}
