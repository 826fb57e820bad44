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

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), 0))
	require.NoError(t, c.Set(ctx, "k", []byte("v2"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got), "last writer wins")

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))

	now = now.Add(2 * time.Minute)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)

	got, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "y", string(got))
	assert.Equal(t, 1, c.Len())
}

func TestMemory_SetNX(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	ok, err := c.SetNX(ctx, "seen:1", []byte("1"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "seen:1", []byte("1"), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = c.Set(ctx, key, []byte{byte(i)}, 0)
			_, _ = c.Get(ctx, key)
			_, _ = c.SetNX(ctx, key+"nx", []byte{1}, time.Second)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, c.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	type rec struct{ ID string }

	var out rec
	hit, err := GetJSON(ctx, c, "r", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, SetJSON(ctx, c, "r", rec{ID: "abc"}, 0))
	hit, err = GetJSON(ctx, c, "r", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "abc", out.ID)
}
