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
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Mailbox is a user mailbox known to Graph.
type Mailbox struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Directory resolves which mailboxes to process.
type Directory struct {
	httpClient *http.Client
	baseURL    string
}

// NewDirectory creates a mailbox directory over the Graph /users endpoint.
func NewDirectory(httpClient *http.Client, baseURL string) *Directory {
	return &Directory{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type usersPage struct {
	Value    []Mailbox `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// Mailboxes returns the explicit include list when one is given, and
// otherwise every licensed user with a mailbox. Exclusions are matched
// case-insensitively in both modes.
func (d *Directory) Mailboxes(ctx context.Context, include, exclude []string) ([]Mailbox, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, m := range exclude {
		excluded[strings.ToLower(strings.TrimSpace(m))] = true
	}

	var out []Mailbox

	if len(include) > 0 {
		slog.Info("using explicit mailbox list", "count", len(include))
		for _, mail := range include {
			mail = strings.TrimSpace(mail)
			if mail == "" || excluded[strings.ToLower(mail)] {
				continue
			}
			// Graph accepts the UPN wherever a user id is expected.
			out = append(out, Mailbox{Mail: mail, UserPrincipalName: mail})
		}
		return out, nil
	}

	slog.Info("discovering mailboxes")

	params := url.Values{}
	params.Set("$filter", "assignedLicenses/$count ne 0")
	params.Set("$count", "true")
	params.Set("$select", "id,mail,displayName,userPrincipalName")
	params.Set("$top", "100")

	for nextURL := fmt.Sprintf("%s/users?%s", d.baseURL, params.Encode()); nextURL != ""; {
		page, err := d.fetchPage(ctx, nextURL)
		if err != nil {
			return nil, err
		}
		for _, u := range page.Value {
			if u.Mail == "" {
				continue
			}
			if excluded[strings.ToLower(u.Mail)] {
				slog.Debug("excluding mailbox", "mail", u.Mail)
				continue
			}
			out = append(out, u)
		}
		nextURL = page.NextLink
	}

	slog.Info("mailbox discovery complete", "discovered", len(out))
	return out, nil
}

func (d *Directory) fetchPage(ctx context.Context, pageURL string) (*usersPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build users request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ConsistencyLevel", "eventual") // required for $count

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph /users returned HTTP %d", resp.StatusCode)
	}

	var page usersPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode users response: %w", err)
	}
	return &page, nil
}
