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

package models

import "strings"

// Importance of an email.
type Importance string

const (
	ImportanceLow    Importance = "Low"
	ImportanceNormal Importance = "Normal"
	ImportanceHigh   Importance = "High"
)

// ParseImportance matches case-insensitively and falls back to Normal.
func ParseImportance(s string) Importance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ImportanceLow
	case "high":
		return ImportanceHigh
	default:
		return ImportanceNormal
	}
}

// EntityType tags a CRM record.
type EntityType string

const (
	EntityContact     EntityType = "Contact"
	EntityLead        EntityType = "Lead"
	EntityOpportunity EntityType = "Opportunity"
	EntityUser        EntityType = "User"
)

// ParseEntityType matches case-insensitively; unknown values return "".
func ParseEntityType(s string) EntityType {
	for _, t := range []EntityType{EntityContact, EntityLead, EntityOpportunity, EntityUser} {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t
		}
	}
	return ""
}

// ActivityType of a timeline entry.
type ActivityType string

const (
	ActivityTask        ActivityType = "Task"
	ActivityEmail       ActivityType = "Email"
	ActivityPhoneCall   ActivityType = "PhoneCall"
	ActivityAppointment ActivityType = "Appointment"
	ActivityCall        ActivityType = "Call"
	ActivityMeeting     ActivityType = "Meeting"
	ActivityNote        ActivityType = "Note"
)

// ActivityStatus of a timeline entry.
type ActivityStatus string

const (
	StatusNotStarted ActivityStatus = "NotStarted"
	StatusInProgress ActivityStatus = "InProgress"
	StatusCompleted  ActivityStatus = "Completed"
	StatusCanceled   ActivityStatus = "Canceled"
	StatusDeferred   ActivityStatus = "Deferred"
)

// Priority of an activity.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
)

// EntityStatus is the lifecycle state of a persisted contact or lead.
type EntityStatus string

const (
	EntityActive   EntityStatus = "Active"
	EntityInactive EntityStatus = "Inactive"
	EntityArchived EntityStatus = "Archived"
)

// LeadStatus tracks lead qualification.
type LeadStatus string

const (
	LeadNew          LeadStatus = "New"
	LeadQualified    LeadStatus = "Qualified"
	LeadDisqualified LeadStatus = "Disqualified"
	LeadConverted    LeadStatus = "Converted"
)

// LeadSource records where a lead came from.
type LeadSource string

const (
	SourceEmail       LeadSource = "Email"
	SourceWebsite     LeadSource = "Website"
	SourcePhone       LeadSource = "Phone"
	SourceReferral    LeadSource = "Referral"
	SourceSocialMedia LeadSource = "SocialMedia"
	SourceEvent       LeadSource = "Event"
	SourceOther       LeadSource = "Other"
)

// OpportunityStage in the sales pipeline.
type OpportunityStage string

const (
	StageProspecting   OpportunityStage = "Prospecting"
	StageQualification OpportunityStage = "Qualification"
	StageProposal      OpportunityStage = "Proposal"
	StageNegotiation   OpportunityStage = "Negotiation"
	StageClosedWon     OpportunityStage = "ClosedWon"
	StageClosedLost    OpportunityStage = "ClosedLost"
)
