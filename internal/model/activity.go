package model

import "time"

// ActivityType identifies the kind of question an activity asks
type ActivityType string

const (
	ActivityMultipleChoice ActivityType = "multiple_choice"
	ActivityOpenEnded      ActivityType = "open_ended"
	ActivityWordCloud      ActivityType = "word_cloud"
	ActivityQA             ActivityType = "qa"
	ActivityClickableImage ActivityType = "clickable_image"
	ActivitySurvey         ActivityType = "survey"
	ActivityCompetition    ActivityType = "competition"
	ActivityRanking        ActivityType = "ranking"
)

// Valid reports whether t is a known activity type
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityMultipleChoice, ActivityOpenEnded, ActivityWordCloud, ActivityQA,
		ActivityClickableImage, ActivitySurvey, ActivityCompetition, ActivityRanking:
		return true
	}
	return false
}

// HasOptions reports whether responses to t reference the option list
func (t ActivityType) HasOptions() bool {
	return t == ActivityMultipleChoice || t == ActivityCompetition || t == ActivityRanking
}

// IsFreeText reports whether responses to t carry free text
func (t ActivityType) IsFreeText() bool {
	return t == ActivityOpenEnded || t == ActivityWordCloud || t == ActivityQA
}

// ActivityStatus is the lifecycle state of an activity
type ActivityStatus string

const (
	StatusDraft    ActivityStatus = "DRAFT"
	StatusActive   ActivityStatus = "ACTIVE"
	StatusLocked   ActivityStatus = "LOCKED"
	StatusArchived ActivityStatus = "ARCHIVED"
	StatusTrash    ActivityStatus = "TRASH"
)

// RichText is prompt or option content. Markdown/LaTeX is rendered by clients.
type RichText struct {
	Text     string `json:"text" bson:"text"`
	ImageURL string `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
}

// Option is one selectable choice of an activity
type Option struct {
	ID        string   `json:"id" bson:"id"`
	Content   RichText `json:"content" bson:"content"`
	IsCorrect *bool    `json:"isCorrect,omitempty" bson:"isCorrect,omitempty"`
}

// Correct reports whether the option is marked correct
func (o Option) Correct() bool {
	return o.IsCorrect != nil && *o.IsCorrect
}

// ActivitySettings configures how an activity accepts and shows responses
type ActivitySettings struct {
	IsAnonymous          bool `json:"isAnonymous" bson:"isAnonymous"`
	ResponseLimit        int  `json:"responseLimit" bson:"responseLimit"`               // <= 0 means unlimited
	OptionSelectionLimit int  `json:"optionSelectionLimit" bson:"optionSelectionLimit"` // multiple_choice only
	AllowChangeAnswer    bool `json:"allowChangeAnswer" bson:"allowChangeAnswer"`
	TimerSeconds         *int `json:"timerSeconds,omitempty" bson:"timerSeconds,omitempty"`
	ShowCorrectAnswer    bool `json:"showCorrectAnswer" bson:"showCorrectAnswer"`
	ModerationEnabled    bool `json:"moderationEnabled" bson:"moderationEnabled"`
	ProfanityFilter      bool `json:"profanityFilter" bson:"profanityFilter"`
	ResultsVisible       bool `json:"resultsVisible" bson:"resultsVisible"`
}

// Activity is a question or poll owned by one professor
type Activity struct {
	ID        string           `json:"id" bson:"_id"`
	OwnerID   string           `json:"ownerId" bson:"ownerId"`
	FolderID  *string          `json:"folderId" bson:"folderId"`
	Type      ActivityType     `json:"type" bson:"type"`
	Status    ActivityStatus   `json:"status" bson:"status"`
	Title     string           `json:"title" bson:"title"`
	Prompt    RichText         `json:"prompt" bson:"prompt"`
	Options   []Option         `json:"options" bson:"options"`
	Settings  ActivitySettings `json:"settings" bson:"settings"`
	ImageURL  string           `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`   // clickable_image
	Questions []Activity       `json:"questions,omitempty" bson:"questions,omitempty"` // survey sub-questions
	Revision  int64            `json:"revision" bson:"revision"`
	CreatedAt time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// FindOption returns the option with the given id
func (a *Activity) FindOption(id string) (Option, bool) {
	for _, o := range a.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// FindQuestion returns the survey sub-question with the given id
func (a *Activity) FindQuestion(id string) (*Activity, bool) {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of a
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	c := *a
	if a.FolderID != nil {
		f := *a.FolderID
		c.FolderID = &f
	}
	if a.Options != nil {
		c.Options = make([]Option, len(a.Options))
		for i, o := range a.Options {
			c.Options[i] = o
			if o.IsCorrect != nil {
				v := *o.IsCorrect
				c.Options[i].IsCorrect = &v
			}
		}
	}
	if a.Settings.TimerSeconds != nil {
		t := *a.Settings.TimerSeconds
		c.Settings.TimerSeconds = &t
	}
	if a.Questions != nil {
		c.Questions = make([]Activity, len(a.Questions))
		for i := range a.Questions {
			c.Questions[i] = *a.Questions[i].Clone()
		}
	}
	return &c
}

// ParticipantView strips fields participants must not see before results are revealed
func (a *Activity) ParticipantView() *Activity {
	c := a.Clone()
	if !c.Settings.ShowCorrectAnswer {
		for i := range c.Options {
			c.Options[i].IsCorrect = nil
		}
		for i := range c.Questions {
			for j := range c.Questions[i].Options {
				c.Questions[i].Options[j].IsCorrect = nil
			}
		}
	}
	return c
}

// SettingsPatch carries per-field settings changes
type SettingsPatch struct {
	IsAnonymous          *bool `json:"isAnonymous,omitempty"`
	ResponseLimit        *int  `json:"responseLimit,omitempty"`
	OptionSelectionLimit *int  `json:"optionSelectionLimit,omitempty"`
	AllowChangeAnswer    *bool `json:"allowChangeAnswer,omitempty"`
	TimerSeconds         *int  `json:"timerSeconds,omitempty"` // 0 clears the timer
	ShowCorrectAnswer    *bool `json:"showCorrectAnswer,omitempty"`
	ModerationEnabled    *bool `json:"moderationEnabled,omitempty"`
	ProfanityFilter      *bool `json:"profanityFilter,omitempty"`
	ResultsVisible       *bool `json:"resultsVisible,omitempty"`
}

// ActivityPatch is a partial update. Nil fields are left unchanged.
type ActivityPatch struct {
	Title            *string        `json:"title,omitempty"`
	Prompt           *RichText      `json:"prompt,omitempty"`
	Options          *[]Option      `json:"options,omitempty"`
	Settings         *SettingsPatch `json:"settings,omitempty"`
	ImageURL         *string        `json:"imageUrl,omitempty"`
	Questions        *[]Activity    `json:"questions,omitempty"`
	FolderID         *string        `json:"folderId,omitempty"` // "" moves to root
	ExpectedRevision *int64         `json:"expectedRevision,omitempty"`
}
