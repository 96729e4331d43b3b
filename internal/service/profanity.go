package service

import goaway "github.com/TwiN/go-away"

// ProfanityChecker is the content moderation collaborator
type ProfanityChecker interface {
	IsProfane(text string) bool
}

// NewProfanityChecker returns the default English profanity detector
func NewProfanityChecker() ProfanityChecker {
	return goaway.NewProfanityDetector()
}

// ProfanityFunc adapts a plain function to ProfanityChecker
type ProfanityFunc func(text string) bool

func (f ProfanityFunc) IsProfane(text string) bool { return f(text) }
