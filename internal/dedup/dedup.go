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

// Package dedup remembers which messages have already been processed so
// overlapping backfill windows do not link the same email twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/bcem/crmbridge/internal/cache"
)

const (
	// DefaultTTL is how long a processed message id is remembered.
	DefaultTTL = 30 * 24 * time.Hour

	keyPrefix = "seen:"
)

// Filter tracks processed ids in the auxiliary cache.
type Filter struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewFilter creates a dedup filter. A zero ttl uses DefaultTTL.
func NewFilter(c cache.Cache, ttl time.Duration) *Filter {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Filter{cache: c, ttl: ttl}
}

// IsNew reports whether id has not been seen before and marks it seen in
// the same step.
func (f *Filter) IsNew(ctx context.Context, id string) (bool, error) {
	set, err := f.cache.SetNX(ctx, keyPrefix+id, []byte{1}, f.ttl)
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return set, nil
}

// Forget clears the mark for id so it is processed again next time.
func (f *Filter) Forget(ctx context.Context, id string) error {
	if err := f.cache.Delete(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("dedup delete: %w", err)
	}
	return nil
}
