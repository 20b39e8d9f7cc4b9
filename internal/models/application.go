// internal/models/application.go
package models

import (
	"fmt"
	"time"
)

type ApplicationStatus string

const (
	StatusDraft          ApplicationStatus = "draft"
	StatusPendingReview  ApplicationStatus = "pending_review"
	StatusPreApproved    ApplicationStatus = "pre_approved"
	StatusNeedsAttention ApplicationStatus = "needs_attention"
	StatusApproved       ApplicationStatus = "approved"
	StatusRejected       ApplicationStatus = "rejected"
)

// AllStatuses is the display order used for admin tabs.
var AllStatuses = []ApplicationStatus{
	StatusDraft,
	StatusPendingReview,
	StatusPreApproved,
	StatusNeedsAttention,
	StatusApproved,
	StatusRejected,
}

func (s ApplicationStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Editable reports whether the applicant may still change answers, files
// or the selected offer.
func (s ApplicationStatus) Editable() bool {
	return s == StatusDraft || s == StatusNeedsAttention
}

// Label is the human readable form used in timeline descriptions and emails.
func (s ApplicationStatus) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPendingReview:
		return "Pending Review"
	case StatusPreApproved:
		return "Pre-Approved"
	case StatusNeedsAttention:
		return "Needs Attention"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var AllPriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank orders priorities from most to least urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Section identifies one wizard section of an application.
type Section string

const (
	SectionProperty           Section = "property"
	SectionPersonal           Section = "personal"
	SectionEmployment         Section = "employment"
	SectionFinancial          Section = "financial"
	SectionLoanRequirements   Section = "loanRequirements"
	SectionAdditionalFeatures Section = "additionalFeatures"
)

var AllSections = []Section{
	SectionProperty,
	SectionPersonal,
	SectionEmployment,
	SectionFinancial,
	SectionLoanRequirements,
	SectionAdditionalFeatures,
}

// ParseSection accepts the camelCase name or its kebab-case URL form.
func ParseSection(s string) (Section, bool) {
	switch s {
	case "loan-requirements":
		return SectionLoanRequirements, true
	case "additional-features":
		return SectionAdditionalFeatures, true
	}
	for _, sec := range AllSections {
		if string(sec) == s {
			return sec, true
		}
	}
	return "", false
}

// Flags are the applicant answers that switch conditional steps and documents on.
type Flags struct {
	HasPartner      bool `json:"hasPartner"`
	IsBusinessOwner bool `json:"isBusinessOwner"`
}

// Value returns the flag named by a conditional-display field.
func (f Flags) Value(field string) (bool, bool) {
	switch field {
	case "hasPartner":
		return f.HasPartner, true
	case "isBusinessOwner":
		return f.IsBusinessOwner, true
	default:
		return false, false
	}
}

type TimelineEvent struct {
	Status      ApplicationStatus `json:"status"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	Actor       string            `json:"actor"`
}

// LoanApplication is the aggregate record of one applicant's loan request.
type LoanApplication struct {
	ID               string                             `json:"id"`
	Status           ApplicationStatus                  `json:"status"`
	Priority         Priority                           `json:"priority"`
	Sections         map[Section]map[string]interface{} `json:"sections"`
	Completion       map[Section]bool                   `json:"completion"`
	Flags            Flags                              `json:"flags"`
	Timeline         []TimelineEvent                    `json:"timeline"`
	Files            []UploadedFile                     `json:"files"`
	DocumentProgress int                                `json:"documentProgress"`
	SelectedOfferID  string                             `json:"selectedOfferId,omitempty"`
	CreatedAt        time.Time                          `json:"createdAt"`
	UpdatedAt        time.Time                          `json:"updatedAt"`
}

const ActorApplicant = "applicant"

// NewApplication returns a fresh draft with its creation event.
func NewApplication(id string, now time.Time) *LoanApplication {
	now = now.UTC()
	return &LoanApplication{
		ID:         id,
		Status:     StatusDraft,
		Priority:   PriorityMedium,
		Sections:   map[Section]map[string]interface{}{},
		Completion: map[Section]bool{},
		Timeline: []TimelineEvent{{
			Status:      StatusDraft,
			Description: "Application created",
			Timestamp:   now,
			Actor:       ActorApplicant,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeriveFlags reads hasPartner from the personal section and isBusinessOwner
// from the employment section.
func (a *LoanApplication) DeriveFlags() Flags {
	var f Flags
	if v, ok := a.Sections[SectionPersonal]["hasPartner"].(bool); ok {
		f.HasPartner = v
	}
	if v, ok := a.Sections[SectionEmployment]["isBusinessOwner"].(bool); ok {
		f.IsBusinessOwner = v
	}
	return f
}

// LastEvent returns the newest timeline event, if any.
func (a *LoanApplication) LastEvent() (TimelineEvent, bool) {
	if len(a.Timeline) == 0 {
		return TimelineEvent{}, false
	}
	return a.Timeline[len(a.Timeline)-1], true
}

// AppendEvent adds a timeline event. The timestamp never goes backwards
// relative to the previous event.
func (a *LoanApplication) AppendEvent(status ApplicationStatus, description, actor string, now time.Time) TimelineEvent {
	ts := now.UTC()
	if last, ok := a.LastEvent(); ok && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}
	ev := TimelineEvent{Status: status, Description: description, Timestamp: ts, Actor: actor}
	a.Timeline = append(a.Timeline, ev)
	return ev
}

// FilesFor returns the uploaded files attached to documentID.
func (a *LoanApplication) FilesFor(documentID string) []UploadedFile {
	var out []UploadedFile
	for _, f := range a.Files {
		if f.DocumentID == documentID {
			out = append(out, f)
		}
	}
	return out
}

// FindFile returns the index of fileID in Files or -1.
func (a *LoanApplication) FindFile(fileID string) int {
	for i, f := range a.Files {
		if f.ID == fileID {
			return i
		}
	}
	return -1
}

// Field returns a top-level answer of a section.
func (a *LoanApplication) Field(section Section, key string) (interface{}, bool) {
	v, ok := a.Sections[section][key]
	return v, ok
}

// StringField returns a section answer formatted as a string.
func (a *LoanApplication) StringField(section Section, key string) string {
	v, ok := a.Field(section, key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// NumberField returns a numeric section answer, accepting the numeric types
// JSON decoding and Go callers produce.
func (a *LoanApplication) NumberField(section Section, key string) float64 {
	v, _ := a.Field(section, key)
	return toFloat(v)
}

// ApplicantName joins first and last name from the personal section.
func (a *LoanApplication) ApplicantName() string {
	first := a.StringField(SectionPersonal, "firstName")
	last := a.StringField(SectionPersonal, "lastName")
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// Clone returns a deep copy that shares no mutable state with a.
func (a *LoanApplication) Clone() *LoanApplication {
	if a == nil {
		return nil
	}
	out := *a
	out.Sections = make(map[Section]map[string]interface{}, len(a.Sections))
	for k, v := range a.Sections {
		out.Sections[k] = copyMap(v)
	}
	out.Completion = make(map[Section]bool, len(a.Completion))
	for k, v := range a.Completion {
		out.Completion[k] = v
	}
	out.Timeline = append([]TimelineEvent(nil), a.Timeline...)
	out.Files = append([]UploadedFile(nil), a.Files...)
	return &out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case interface{ Float64() (float64, error) }:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
