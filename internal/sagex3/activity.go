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

package sagex3

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/validation"
)

// Mail directions of a YActivity.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

var (
	activityIDFields   = []string{"ActivityId", "activityId", "id", "Id"}
	attachmentIDFields = []string{"AttachmentId", "attachmentId", "id", "Id"}
)

// YActivity is the ERP's email activity record.
type YActivity struct {
	Subject   string    `json:"YSUBJECT" validate:"required,max=255"`
	HTMLBody  string    `json:"YHTMLBODY"`
	TextBody  string    `json:"YTEXTBODY"`
	Contact   string    `json:"BPCCT" validate:"max=100"`
	SentDate  time.Time `json:"YSENTDATE"`
	Direction string    `json:"YDIR" validate:"omitempty,oneof=IN OUT"`
	Owner     string    `json:"YOWNER" validate:"max=100"`
	MessageID string    `json:"YMESSAGEID" validate:"max=500"`
}

// ActivityFromEmail maps an email snapshot onto a YActivity. contact is
// the ERP contact code; owner is the signed-in user.
func ActivityFromEmail(email models.EmailContext, contact, owner string) YActivity {
	a := YActivity{
		Subject:   email.Subject,
		TextBody:  email.PlainBody(),
		Contact:   contact,
		SentDate:  email.ReceivedTime,
		Direction: DirectionIn,
		Owner:     owner,
		MessageID: email.ItemID,
	}
	if strings.EqualFold(email.BodyType, models.BodyTypeHTML) {
		a.HTMLBody = email.Body
	}
	return a
}

// ActivityResponse is the ERP's answer to an activity create.
type ActivityResponse struct {
	ActivityID string `json:"activityId"`
	Raw        string `json:"raw"`
}

// AttachmentResponse is the ERP's answer to an attachment upload.
type AttachmentResponse struct {
	AttachmentID string `json:"attachmentId"`
	Raw          string `json:"raw"`
}

// CreateActivity pushes an email activity to the ERP.
func (c *Client) CreateActivity(ctx context.Context, a YActivity) result.Result[*ActivityResponse] {
	if a.Direction == "" {
		a.Direction = DirectionIn
	}
	if msgs := validation.Struct(c.validate, a); msgs != nil {
		return result.Invalid[*ActivityResponse]("Validation failed", msgs...)
	}

	resp, err := c.do(ctx, http.MethodPost, "/sdata/crm/activity", a)
	if err != nil || !resp.ok() {
		return failure[*ActivityResponse]("create activity", resp, err)
	}
	return result.Created(&ActivityResponse{
		ActivityID: firstString(decodeObject(resp.raw), activityIDFields...),
		Raw:        string(resp.raw),
	})
}

type attachmentPayload struct {
	FileName      string `json:"fileName"`
	ContentBase64 string `json:"contentBase64"`
}

// UploadAttachment sends file bytes to an ERP activity. A response without
// a recognizable attachment id is still a success.
func (c *Client) UploadAttachment(ctx context.Context, activityID, fileName string, content []byte) result.Result[*AttachmentResponse] {
	if strings.TrimSpace(activityID) == "" {
		return result.Invalid[*AttachmentResponse]("Activity ID is required")
	}

	path := "/sdata/crm/activity/" + url.PathEscape(activityID) + "/attachments"
	resp, err := c.do(ctx, http.MethodPost, path, attachmentPayload{
		FileName:      fileName,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	})
	if err != nil || !resp.ok() {
		return failure[*AttachmentResponse]("upload attachment", resp, err)
	}
	return result.OK(&AttachmentResponse{
		AttachmentID: firstString(decodeObject(resp.raw), attachmentIDFields...),
		Raw:          string(resp.raw),
	})
}
