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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcem/crmbridge/internal/cache"
	"github.com/bcem/crmbridge/internal/models"
)

// ErrNotFound is returned when Graph has no such message.
var ErrNotFound = errors.New("message not found")

const (
	defaultPageDelay = 500 * time.Millisecond
	defaultCacheTTL  = 15 * time.Minute
	pageSize         = 50
)

// GraphConfig holds dependencies for the Graph provider.
type GraphConfig struct {
	// HTTPClient must add Graph credentials, e.g. an oauth2
	// client-credentials client.
	HTTPClient *http.Client
	BaseURL    string
	Cache      cache.Cache
	CacheTTL   time.Duration
	PageDelay  time.Duration
}

// GraphProvider reads messages through the Microsoft Graph API.
type GraphProvider struct {
	httpClient *http.Client
	baseURL    string
	cache      cache.Cache
	cacheTTL   time.Duration
	pageDelay  time.Duration
}

// NewGraphProvider creates a Graph-backed mailbox provider.
func NewGraphProvider(cfg GraphConfig) *GraphProvider {
	delay := cfg.PageDelay
	if delay == 0 {
		delay = defaultPageDelay
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &GraphProvider{
		httpClient: cfg.HTTPClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cache:      cfg.Cache,
		cacheTTL:   ttl,
		pageDelay:  delay,
	}
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	} `json:"emailAddress"`
}

func (a graphAddress) model() models.EmailAddress {
	return models.EmailAddress{Name: a.EmailAddress.Name, Address: a.EmailAddress.Address}
}

// graphMessage is the subset of a Graph message the bridge reads.
type graphMessage struct {
	ID               string         `json:"id"`
	Subject          string         `json:"subject"`
	From             graphAddress   `json:"from"`
	Sender           graphAddress   `json:"sender"`
	ToRecipients     []graphAddress `json:"toRecipients"`
	CcRecipients     []graphAddress `json:"ccRecipients"`
	BccRecipients    []graphAddress `json:"bccRecipients"`
	ReceivedDateTime string         `json:"receivedDateTime"`
	Body             struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ConversationID string `json:"conversationId"`
	Importance     string `json:"importance"`
	IsRead         bool   `json:"isRead"`
	Attachments    []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Size        int    `json:"size"`
		ContentType string `json:"contentType"`
	} `json:"attachments"`
}

func (m graphMessage) context() models.EmailContext {
	sender := m.From.model()
	if sender.Address == "" {
		sender = m.Sender.model()
	}

	attachments := make([]models.AttachmentInfo, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, models.AttachmentInfo{
			ID:          a.ID,
			Name:        a.Name,
			Size:        a.Size,
			ContentType: a.ContentType,
		})
	}

	return models.EmailContext{
		ItemID:            m.ID,
		Subject:           m.Subject,
		Body:              m.Body.Content,
		BodyType:          strings.ToLower(m.Body.ContentType),
		ReceivedTime:      parseTime(m.ReceivedDateTime),
		Sender:            sender,
		ToRecipients:      addresses(m.ToRecipients),
		CcRecipients:      addresses(m.CcRecipients),
		BccRecipients:     addresses(m.BccRecipients),
		Attachments:       attachments,
		ConversationID:    m.ConversationID,
		ConversationTopic: m.Subject,
		Importance:        models.ParseImportance(m.Importance),
		IsRead:            m.IsRead,
	}
}

func addresses(in []graphAddress) []models.EmailAddress {
	out := make([]models.EmailAddress, 0, len(in))
	for _, a := range in {
		out = append(out, a.model())
	}
	return out
}

// EmailContext fetches a message snapshot. Snapshots are immutable, so
// they are served from the cache when present.
func (g *GraphProvider) EmailContext(ctx context.Context, mailbox, itemID string) (models.EmailContext, error) {
	key := "mailbox:" + strings.ToLower(mailbox) + "/" + itemID
	if g.cache != nil {
		var cached models.EmailContext
		if hit, err := cache.GetJSON(ctx, g.cache, key, &cached); err != nil {
			slog.Warn("mailbox cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("$select", "id,subject,from,sender,toRecipients,ccRecipients,bccRecipients,"+
		"receivedDateTime,body,conversationId,importance,isRead")
	params.Set("$expand", "attachments($select=id,name,size,contentType)")

	msgURL := fmt.Sprintf("%s/users/%s/messages/%s?%s",
		g.baseURL, url.PathEscape(mailbox), url.PathEscape(itemID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, msgURL, nil)
	if err != nil {
		return models.EmailContext{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return models.EmailContext{}, fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("message not found (may have been deleted)",
			"mailbox", mailbox,
			"item_id", itemID,
		)
		return models.EmailContext{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return models.EmailContext{}, fmt.Errorf("graph API returned HTTP %d for message %s", resp.StatusCode, itemID)
	}

	var msg graphMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return models.EmailContext{}, fmt.Errorf("decode graph message: %w", err)
	}
	email := msg.context()

	if g.cache != nil {
		if err := cache.SetJSON(ctx, g.cache, key, email, g.cacheTTL); err != nil {
			slog.Warn("mailbox cache write failed", "error", err)
		}
	}
	return email, nil
}

// messagesPage is a page of the /messages list response.
type messagesPage struct {
	Value []struct {
		ID string `json:"id"`
	} `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// ListMessageIDs walks the ids of messages received at or after since,
// newest first, calling fn once per page. Pages are spaced by the
// configured delay. An error from fn stops the walk.
func (g *GraphProvider) ListMessageIDs(ctx context.Context, mailbox string, since time.Time, fn func(ids []string) error) error {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("receivedDateTime ge %s", since.UTC().Format(time.RFC3339)))
	params.Set("$select", "id")
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", fmt.Sprint(pageSize))

	listURL := fmt.Sprintf("%s/users/%s/messages?%s", g.baseURL, url.PathEscape(mailbox), params.Encode())

	pageCount := 0
	for nextURL := listURL; nextURL != ""; {
		if pageCount > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.pageDelay):
			}
		}

		page, err := g.fetchPage(ctx, nextURL)
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", pageCount, err)
		}
		pageCount++

		ids := make([]string, 0, len(page.Value))
		for _, m := range page.Value {
			ids = append(ids, m.ID)
		}
		slog.Debug("message page fetched",
			"mailbox", mailbox,
			"page", pageCount,
			"messages", len(ids),
		)
		if err := fn(ids); err != nil {
			return err
		}

		nextURL = page.NextLink
	}
	return nil
}

func (g *GraphProvider) fetchPage(ctx context.Context, pageURL string) (*messagesPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", fmt.Sprintf("odata.maxpagesize=%d", pageSize))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("messages list error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("messages list returned HTTP %d", resp.StatusCode)
	}

	var page messagesPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}
	return &page, nil
}
