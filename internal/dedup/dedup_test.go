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

package dedup

import (
	"context"
	"testing"

	"github.com/bcem/crmbridge/internal/cache"
)

func TestFilter_IsNewAndForget(t *testing.T) {
	ctx := context.Background()
	f := NewFilter(cache.NewMemory(), 0)

	first, err := f.IsNew(ctx, "alice/msg-1")
	if err != nil || !first {
		t.Fatalf("first IsNew = %v, %v; want true", first, err)
	}
	again, err := f.IsNew(ctx, "alice/msg-1")
	if err != nil || again {
		t.Fatalf("second IsNew = %v, %v; want false", again, err)
	}

	if err := f.Forget(ctx, "alice/msg-1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if fresh, _ := f.IsNew(ctx, "alice/msg-1"); !fresh {
		t.Error("IsNew after Forget = false, want true")
	}
}
