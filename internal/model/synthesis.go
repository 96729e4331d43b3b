package model

import "time"

// SynthesisStatus tracks an async synthesis request
type SynthesisStatus string

const (
	SynthesisPending    SynthesisStatus = "pending"
	SynthesisGenerating SynthesisStatus = "generating"
	SynthesisReady      SynthesisStatus = "ready"
	SynthesisFailed     SynthesisStatus = "failed"
)

// SynthesisResult is the structured narrative returned by the summarizer
type SynthesisResult struct {
	Consensus            string   `json:"consensus" bson:"consensus"`
	DistributionAnalysis string   `json:"distribution_analysis" bson:"distributionAnalysis"`
	KeyInferences        []string `json:"key_inferences" bson:"keyInferences"`
	ConfusionPoints      []string `json:"confusion_points" bson:"confusionPoints"`
	OutlierInsight       string   `json:"outlier_insight" bson:"outlierInsight"`
	RecommendedAction    string   `json:"recommended_action" bson:"recommendedAction"`
}

// Synthesis is the persisted synthesis for an activity (one per activity, latest wins)
type Synthesis struct {
	ActivityID    string           `json:"activityId" bson:"activityId"`
	OwnerID       string           `json:"ownerId" bson:"ownerId"`
	Status        SynthesisStatus  `json:"status" bson:"status"`
	ResponseCount int              `json:"responseCount" bson:"responseCount"`
	Result        *SynthesisResult `json:"result,omitempty" bson:"result,omitempty"`
	Error         string           `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt     time.Time        `json:"createdAt" bson:"createdAt"`
	ReadyAt       *time.Time       `json:"readyAt,omitempty" bson:"readyAt,omitempty"`
}

// DraftOption is a suggested option in a drafted activity
type DraftOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Draft is an AI-suggested activity the professor can turn into a real one
type Draft struct {
	Type    ActivityType  `json:"type"`
	Title   string        `json:"title"`
	Prompt  string        `json:"prompt"`
	Options []DraftOption `json:"options"`
	Source  string        `json:"source"` // "ai" or "mock"
}
