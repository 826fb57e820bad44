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

// Package attachment relays email attachments to the ERP, optionally
// keeping a local copy under an archive directory.
package attachment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/sagex3"
	"github.com/bcem/crmbridge/internal/validation"
)

// Uploader sends attachment bytes to the ERP; sagex3.Client satisfies it.
type Uploader interface {
	UploadAttachment(ctx context.Context, activityID, fileName string, content []byte) result.Result[*sagex3.AttachmentResponse]
}

// Upload is the outcome of a successful relay.
type Upload struct {
	Success              bool   `json:"success"`
	ExternalAttachmentID string `json:"externalAttachmentId"`
	Raw                  string `json:"raw"`
}

// Config holds relay settings.
type Config struct {
	ERP Uploader

	// ArchiveDir, when set, receives a copy of every upload at
	// <ArchiveDir>/<activityID>/<fileName>.
	ArchiveDir string

	// MaxSize caps the decoded content length; zero means no cap.
	MaxSize int64
}

// Relay forwards attachments to the ERP.
type Relay struct {
	erp        Uploader
	archiveDir string
	maxSize    int64
}

// NewRelay creates an attachment relay.
func NewRelay(cfg Config) *Relay {
	return &Relay{
		erp:        cfg.ERP,
		archiveDir: cfg.ArchiveDir,
		maxSize:    cfg.MaxSize,
	}
}

// Upload validates the input, archives it when configured and forwards it
// to the ERP. ERP rejections keep their upstream status and raw body.
func (r *Relay) Upload(ctx context.Context, activityID, fileName string, content []byte) result.Result[*Upload] {
	activityID = validation.NormalizeID(activityID)
	var errs []string
	switch {
	case activityID == "":
		errs = append(errs, "Activity ID is required")
	case !validation.IsID(activityID):
		errs = append(errs, "Invalid activity ID format")
	}
	name := baseName(fileName)
	if name == "" {
		errs = append(errs, "File name is required")
	}
	if len(content) == 0 {
		errs = append(errs, "File content is required")
	} else if r.maxSize > 0 && int64(len(content)) > r.maxSize {
		errs = append(errs, fmt.Sprintf("File exceeds maximum size of %d bytes", r.maxSize))
	}
	if len(errs) > 0 {
		return result.Invalid[*Upload]("Missing parameters", errs...)
	}

	if r.archiveDir != "" {
		if err := r.archive(activityID, name, content); err != nil {
			slog.Warn("attachment archive failed",
				"activity_id", activityID,
				"file", name,
				"error", err,
			)
		}
	}

	res := r.erp.UploadAttachment(ctx, activityID, name, content)
	if !res.Success {
		slog.Error("attachment upload failed",
			"activity_id", activityID,
			"file", name,
			"status", res.StatusCode,
			"detail", res.Detail,
		)
		return result.Fail[*Upload](res)
	}

	slog.Info("attachment uploaded",
		"activity_id", activityID,
		"file", name,
		"bytes", len(content),
		"attachment_id", res.Data.AttachmentID,
	)
	return result.OK(&Upload{
		Success:              true,
		ExternalAttachmentID: res.Data.AttachmentID,
		Raw:                  res.Data.Raw,
	})
}

func (r *Relay) archive(activityID, name string, content []byte) error {
	dir := filepath.Join(r.archiveDir, activityID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o640); err != nil {
		return fmt.Errorf("write archive file: %w", err)
	}
	return nil
}

// baseName strips any directory part, including Windows separators sent
// by the add-in.
func baseName(fileName string) string {
	name := strings.TrimSpace(fileName)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return name
}
