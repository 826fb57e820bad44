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

// Package match scores CRM records against an inbound email. An exact
// sender-address match scores 1.0; a record found by free-text search over
// the subject, body and sender name scores 0.5. Results are deduplicated by
// record id and ranked by score.
package match

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
)

// Confidence scores.
const (
	ExactScore = 1.0
	FuzzyScore = 0.5
)

// RecordFinder is the subset of the CRM gateway the engine needs.
type RecordFinder interface {
	FindByEmail(ctx context.Context, email string) result.Result[*models.CrmRecord]
	FindByContent(ctx context.Context, content string) result.Result[*models.CrmRecord]
}

// Engine finds candidate records for an email. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	finder RecordFinder
}

// NewEngine creates a match engine over the given finder.
func NewEngine(finder RecordFinder) *Engine {
	return &Engine{finder: finder}
}

// Find returns candidates ordered by score, highest first. A failing pass
// is logged and contributes no match; Find itself never fails.
func (e *Engine) Find(ctx context.Context, email models.EmailContext) []models.MatchResult {
	sender := NormalizeAddress(email.Sender.Address)
	results := make([]models.MatchResult, 0, 2)

	if sender != "" {
		if r, ok := e.pass(ctx, "exact", sender, e.finder.FindByEmail); ok {
			results = append(results, toMatch(r, sender, ExactScore))
		}
	}

	if content := Content(email); content != "" {
		if r, ok := e.pass(ctx, "fuzzy", content, e.finder.FindByContent); ok {
			results = append(results, toMatch(r, sender, FuzzyScore))
		}
	}

	return Rank(results)
}

func (e *Engine) pass(
	ctx context.Context,
	name, input string,
	find func(context.Context, string) result.Result[*models.CrmRecord],
) (*models.CrmRecord, bool) {
	res := find(ctx, input)
	if !res.Success {
		slog.Warn("match pass failed",
			"pass", name,
			"kind", res.Kind,
			"error", res.Error,
		)
		return nil, false
	}
	return res.Data, res.Data != nil
}

// NormalizeAddress trims and lower-cases an email address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Content builds the fuzzy-pass search text: subject, plain-text body and
// sender display name joined by single spaces, blank parts omitted.
func Content(email models.EmailContext) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{email.Subject, email.PlainBody(), email.Sender.Name} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Rank keeps the highest-scoring entry per record id, at the position of
// its first occurrence, then stable-sorts by score descending.
func Rank(results []models.MatchResult) []models.MatchResult {
	out := make([]models.MatchResult, 0, len(results))
	index := make(map[string]int, len(results))

	for _, r := range results {
		if i, seen := index[r.ID]; seen {
			if r.Score > out[i].Score {
				out[i] = r
			}
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func toMatch(r *models.CrmRecord, sender string, score float64) models.MatchResult {
	return models.MatchResult{
		ID:           r.ID,
		Name:         r.Name,
		EntityType:   string(r.Type),
		Score:        score,
		PrimaryEmail: sender,
	}
}
