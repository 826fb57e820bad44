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

// Package backfill auto-links historical email. It walks mailboxes over a
// lookback window, runs every message through the match engine and links
// confident matches to the CRM timeline.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcem/crmbridge/internal/mailbox"
	"github.com/bcem/crmbridge/internal/models"
)

// DefaultThreshold links exact sender matches only.
const DefaultThreshold = 1.0

// UserID attributed to links created by a backfill run.
const UserID = "backfill"

// Lister enumerates message ids in a mailbox page by page.
type Lister interface {
	ListMessageIDs(ctx context.Context, mailbox string, since time.Time, fn func(ids []string) error) error
}

// Provider loads the snapshot of a single message.
type Provider interface {
	EmailContext(ctx context.Context, mailbox, itemID string) (models.EmailContext, error)
}

// Matcher ranks CRM records against an email.
type Matcher interface {
	Find(ctx context.Context, email models.EmailContext) []models.MatchResult
}

// Linker records an email on a CRM record's timeline.
type Linker interface {
	Link(ctx context.Context, req models.LinkRequest) models.LinkResult
}

// SeenFilter marks processed messages so reruns skip them.
type SeenFilter interface {
	IsNew(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Request defines the scope of a backfill run.
type Request struct {
	Mailboxes []string
	Since     time.Duration // lookback window (e.g. 168h = 1 week)
}

// Result summarises a completed backfill run.
type Result struct {
	MailboxResults []MailboxResult
	TotalLinked    int
	TotalUnmatched int
	TotalSkipped   int
	TotalErrors    int
	Elapsed        time.Duration
}

// MailboxResult tracks per-mailbox progress.
type MailboxResult struct {
	Mailbox   string
	Linked    int
	Unmatched int
	Skipped   int
	Errors    int
}

// Runner performs the auto-link backfill.
type Runner struct {
	lister    Lister
	provider  Provider
	matcher   Matcher
	linker    Linker
	seen      SeenFilter
	threshold float64
}

// RunnerConfig holds dependencies for the backfill runner. Seen may be nil,
// in which case every listed message is processed.
type RunnerConfig struct {
	Lister    Lister
	Provider  Provider
	Matcher   Matcher
	Linker    Linker
	Seen      SeenFilter
	Threshold float64
}

// NewRunner creates a backfill runner.
func NewRunner(cfg RunnerConfig) *Runner {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Runner{
		lister:    cfg.Lister,
		provider:  cfg.Provider,
		matcher:   cfg.Matcher,
		linker:    cfg.Linker,
		seen:      cfg.Seen,
		threshold: threshold,
	}
}

// Run backfills every requested mailbox. A failing mailbox is recorded and
// the run continues with the next one; only cancellation stops it early.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	since := time.Now().UTC().Add(-req.Since)

	slog.Info("starting auto-link backfill",
		"mailboxes", len(req.Mailboxes),
		"since", since.Format(time.RFC3339),
		"threshold", r.threshold,
	)

	result := &Result{}
	for _, mb := range req.Mailboxes {
		mr, err := r.backfillMailbox(ctx, mb, since)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			slog.Error("backfill failed for mailbox", "mailbox", mb, "error", err)
			mr.Errors++
		}

		result.MailboxResults = append(result.MailboxResults, mr)
		result.TotalLinked += mr.Linked
		result.TotalUnmatched += mr.Unmatched
		result.TotalSkipped += mr.Skipped
		result.TotalErrors += mr.Errors
	}

	result.Elapsed = time.Since(start)

	slog.Info("auto-link backfill complete",
		"linked", result.TotalLinked,
		"unmatched", result.TotalUnmatched,
		"skipped", result.TotalSkipped,
		"errors", result.TotalErrors,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

func (r *Runner) backfillMailbox(ctx context.Context, mb string, since time.Time) (MailboxResult, error) {
	mr := MailboxResult{Mailbox: mb}

	slog.Info("backfilling mailbox", "mailbox", mb, "since", since.Format(time.RFC3339))

	err := r.lister.ListMessageIDs(ctx, mb, since, func(ids []string) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.process(ctx, mb, id, &mr)
		}
		return nil
	})
	if err != nil {
		return mr, fmt.Errorf("list messages: %w", err)
	}

	slog.Info("mailbox backfill complete",
		"mailbox", mb,
		"linked", mr.Linked,
		"unmatched", mr.Unmatched,
		"skipped", mr.Skipped,
		"errors", mr.Errors,
	)
	return mr, nil
}

func (r *Runner) process(ctx context.Context, mb, id string, mr *MailboxResult) {
	key := mb + ":" + id
	if r.seen != nil {
		isNew, err := r.seen.IsNew(ctx, key)
		if err != nil {
			slog.Warn("dedup check failed", "error", err)
		} else if !isNew {
			mr.Skipped++
			return
		}
	}

	email, err := r.provider.EmailContext(ctx, mb, id)
	if errors.Is(err, mailbox.ErrNotFound) {
		mr.Skipped++
		return
	}
	if err != nil {
		slog.Warn("backfill: fetch message failed", "mailbox", mb, "message_id", id, "error", err)
		mr.Errors++
		r.forget(ctx, key)
		return
	}

	matches := r.matcher.Find(ctx, email)
	if len(matches) == 0 || matches[0].Score < r.threshold {
		mr.Unmatched++
		return
	}
	best := matches[0]

	res := r.linker.Link(ctx, models.LinkRequest{
		EmailID:          id,
		EmailContext:     email,
		TargetRecordID:   best.ID,
		TargetEntityType: best.EntityType,
		UserID:           UserID,
	})
	if !res.Success {
		slog.Warn("backfill: link failed",
			"mailbox", mb,
			"message_id", id,
			"target", best.ID,
			"reason", res.Message,
		)
		mr.Errors++
		r.forget(ctx, key)
		return
	}

	slog.Debug("backfill: linked",
		"mailbox", mb,
		"message_id", id,
		"target", best.ID,
		"activity_id", res.ActivityID,
	)
	mr.Linked++
}

func (r *Runner) forget(ctx context.Context, key string) {
	if r.seen == nil {
		return
	}
	if err := r.seen.Forget(ctx, key); err != nil {
		slog.Warn("dedup forget failed", "key", key, "error", err)
	}
}
