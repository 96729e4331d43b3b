package model

// OptionCount is the tally for one option. Points is only set for ranking.
type OptionCount struct {
	OptionID string `json:"optionId"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
	Points   int    `json:"points,omitempty"`
}

// WordFrequency is one word-cloud entry
type WordFrequency struct {
	Text  string  `json:"text"`
	Count int     `json:"count"`
	Size  float64 `json:"size"` // 1 + 4*count/maxCount
}

// LeaderboardEntry is one competition ranking row
type LeaderboardEntry struct {
	ResponseID    string `json:"responseId"`
	ParticipantID string `json:"participantId"`
	OptionID      string `json:"optionId"`
	Score         int    `json:"score"`
}

// QAEntry is one question in the Q&A feed
type QAEntry struct {
	ResponseID    string         `json:"responseId"`
	ParticipantID string         `json:"participantId,omitempty"`
	Text          string         `json:"text"`
	Status        ResponseStatus `json:"status"`
	Upvotes       int            `json:"upvotes"`
}

// TextEntry is one open-ended answer
type TextEntry struct {
	ResponseID    string `json:"responseId"`
	ParticipantID string `json:"participantId,omitempty"`
	Text          string `json:"text"`
}

// AggregateView is the derived summary of an activity's live response set
type AggregateView struct {
	ActivityID     string             `json:"activityId"`
	Type           ActivityType       `json:"type"`
	TotalResponses int                `json:"totalResponses"`
	Counts         []OptionCount      `json:"counts,omitempty"`
	Words          []WordFrequency    `json:"words,omitempty"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard,omitempty"`
	Points         []Point            `json:"points,omitempty"`
	Questions      []QAEntry          `json:"questions,omitempty"`
	Pending        []QAEntry          `json:"pending,omitempty"`
	Texts          []TextEntry        `json:"texts,omitempty"`
	Survey         []AggregateView    `json:"survey,omitempty"`
}
