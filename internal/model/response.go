package model

import "time"

// ResponseStatus is the moderation state of a Q&A response
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "PENDING"
	ResponseApproved ResponseStatus = "APPROVED"
	ResponseRejected ResponseStatus = "REJECTED"
	ResponseFeatured ResponseStatus = "FEATURED"
)

// Valid reports whether s is a known moderation state
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponsePending, ResponseApproved, ResponseRejected, ResponseFeatured:
		return true
	}
	return false
}

// Point is a normalized click position, both coordinates in [0,1]
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// ResponseContent is the variant payload of a response. Absent fields mean
// "no answer to this sub-part", never zero.
type ResponseContent struct {
	OptionID      string                     `json:"optionId,omitempty" bson:"optionId,omitempty"`
	OptionIDs     []string                   `json:"optionIds,omitempty" bson:"optionIds,omitempty"`
	Text          string                     `json:"text,omitempty" bson:"text,omitempty"`
	Order         []string                   `json:"order,omitempty" bson:"order,omitempty"`
	Point         *Point                     `json:"point,omitempty" bson:"point,omitempty"`
	Score         *int                       `json:"score,omitempty" bson:"score,omitempty"`
	TimeRemaining *float64                   `json:"timeRemaining,omitempty" bson:"timeRemaining,omitempty"`
	Answers       map[string]ResponseContent `json:"answers,omitempty" bson:"answers,omitempty"` // survey: sub-question id -> answer
}

// Clone returns a deep copy of c
func (c ResponseContent) Clone() ResponseContent {
	out := c
	if c.OptionIDs != nil {
		out.OptionIDs = append([]string(nil), c.OptionIDs...)
	}
	if c.Order != nil {
		out.Order = append([]string(nil), c.Order...)
	}
	if c.Point != nil {
		p := *c.Point
		out.Point = &p
	}
	if c.Score != nil {
		s := *c.Score
		out.Score = &s
	}
	if c.TimeRemaining != nil {
		t := *c.TimeRemaining
		out.TimeRemaining = &t
	}
	if c.Answers != nil {
		out.Answers = make(map[string]ResponseContent, len(c.Answers))
		for k, v := range c.Answers {
			out.Answers[k] = v.Clone()
		}
	}
	return out
}

// Response is one participant's answer to one activity
type Response struct {
	ID            string          `json:"id" bson:"_id"`
	ActivityID    string          `json:"activityId" bson:"activityId"`
	OwnerID       string          `json:"ownerId" bson:"ownerId"`
	ParticipantID string          `json:"participantId" bson:"participantId"`
	RunID         *string         `json:"runId" bson:"runId"`
	Content       ResponseContent `json:"content" bson:"content"`
	Status        ResponseStatus  `json:"status,omitempty" bson:"status,omitempty"` // qa only
	Upvotes       int             `json:"upvotes" bson:"upvotes"`
	UpvoterIDs    []string        `json:"upvoterIds" bson:"upvoterIds"`
	DedupeKey     string          `json:"-" bson:"dedupeKey"`
	SubmittedAt   time.Time       `json:"submittedAt" bson:"submittedAt"`
	UpdatedAt     time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// HasUpvoter reports whether participantID has upvoted r
func (r *Response) HasUpvoter(participantID string) bool {
	for _, id := range r.UpvoterIDs {
		if id == participantID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of r
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Content = r.Content.Clone()
	if r.RunID != nil {
		id := *r.RunID
		c.RunID = &id
	}
	c.UpvoterIDs = append([]string{}, r.UpvoterIDs...)
	return &c
}
