package draft

import "time"

// Status is a draft's position in the approval workflow.
type Status string

const (
	StatusDraft    Status = "Draft"
	StatusInReview Status = "In Review"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus accepts the wire value or its compact form ("InReview").
func ParseStatus(s string) (Status, bool) {
	switch s {
	case string(StatusDraft):
		return StatusDraft, true
	case string(StatusInReview), "InReview":
		return StatusInReview, true
	case string(StatusApproved):
		return StatusApproved, true
	case string(StatusRejected):
		return StatusRejected, true
	}
	return "", false
}

// Attachment references one stored object. URL is unique within a draft.
type Attachment struct {
	Name       string `json:"name" bson:"name"`
	URL        string `json:"url" bson:"url"`
	Type       string `json:"type" bson:"type"`
	ObjectPath string `json:"objectPath" bson:"objectPath"`
}

// Draft is a content record owned by one organization. Field names are the
// wire contract shared with dashboards and calendars.
type Draft struct {
	ID             string       `json:"id" bson:"_id"`
	OrganizationID string       `json:"organizationId" bson:"organizationId"`
	Title          string       `json:"title" bson:"title"`
	Content        string       `json:"content" bson:"content"`
	Status         Status       `json:"status" bson:"status"`
	Author         string       `json:"author" bson:"author"`
	AuthorID       string       `json:"authorId" bson:"authorId"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updatedAt"`
	Attachments    []Attachment `json:"attachments" bson:"attachments"`
	AlignmentScore *float64     `json:"alignmentScore,omitempty" bson:"alignmentScore,omitempty"`
	Feedback       string       `json:"feedback,omitempty" bson:"feedback,omitempty"`
	Suggestions    []string     `json:"suggestions,omitempty" bson:"suggestions,omitempty"`
	Rationale      string       `json:"rationale,omitempty" bson:"rationale,omitempty"`
	Justification  string       `json:"justification,omitempty" bson:"justification,omitempty"`
}

// Patch is a partial draft for Save. Only non-nil fields are written; status
// and score fields are deliberately absent.
type Patch struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// TouchesBody reports whether the patch edits title or content.
func (p Patch) TouchesBody() bool { return p.Title != nil || p.Content != nil }

// ScoreResult is the normalized scorer output persisted onto a draft.
type ScoreResult struct {
	AlignmentScore   float64  `json:"alignmentScore"`
	Justification    string   `json:"justification"`
	SuggestedActions []string `json:"suggestedActions"`
	Rationale        string   `json:"rationale"`
	Feedback         string   `json:"feedback"`
}

// Stats summarizes an organization's drafts.
type Stats struct {
	ByStatus         map[Status]int `json:"byStatus"`
	Scored           int            `json:"scored"`
	AverageAlignment float64        `json:"averageAlignment"`
}

// Summarize computes Stats over drafts.
func Summarize(drafts []*Draft) Stats {
	s := Stats{ByStatus: map[Status]int{StatusDraft: 0, StatusInReview: 0, StatusApproved: 0, StatusRejected: 0}}
	var total float64
	for _, d := range drafts {
		s.ByStatus[d.Status]++
		if d.AlignmentScore != nil {
			s.Scored++
			total += *d.AlignmentScore
		}
	}
	if s.Scored > 0 {
		s.AverageAlignment = total / float64(s.Scored)
	}
	return s
}
