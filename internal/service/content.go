package service

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"livepoll/internal/apperr"
	"livepoll/internal/model"
)

const (
	maxTextLength    = 2000
	competitionBase  = 1000
	competitionBonus = 500
)

// CompetitionScore is 0 for a wrong answer, else a fixed base plus a linear time bonus capped at 500
func CompetitionScore(correct bool, timeRemaining, totalTime float64) int {
	if !correct || totalTime <= 0 {
		return 0
	}
	ratio := math.Max(0, math.Min(1, timeRemaining/totalTime))
	return competitionBase + int(math.Floor(competitionBonus*ratio))
}

// ValidateContent checks c against a's type and returns the normalized content:
// only the fields meaningful for that type are kept.
func ValidateContent(a *model.Activity, c model.ResponseContent) (model.ResponseContent, error) {
	switch a.Type {
	case model.ActivityMultipleChoice:
		return validateChoice(a, c)
	case model.ActivityCompetition:
		return validateCompetition(a, c)
	case model.ActivityOpenEnded, model.ActivityWordCloud, model.ActivityQA:
		text := strings.TrimSpace(c.Text)
		if text == "" {
			return model.ResponseContent{}, invalidContent("text is required")
		}
		if utf8.RuneCountInString(text) > maxTextLength {
			return model.ResponseContent{}, invalidContent(fmt.Sprintf("text exceeds %d characters", maxTextLength))
		}
		return model.ResponseContent{Text: text}, nil
	case model.ActivityRanking:
		return validateRanking(a, c)
	case model.ActivityClickableImage:
		if c.Point == nil {
			return model.ResponseContent{}, invalidContent("point is required")
		}
		p := *c.Point
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 || math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return model.ResponseContent{}, invalidContent("point coordinates must be within [0,1]")
		}
		return model.ResponseContent{Point: &p}, nil
	case model.ActivitySurvey:
		return validateSurvey(a, c)
	}
	return model.ResponseContent{}, invalidContent(fmt.Sprintf("unsupported activity type %q", a.Type))
}

func validateChoice(a *model.Activity, c model.ResponseContent) (model.ResponseContent, error) {
	if len(c.OptionIDs) > 0 {
		limit := a.Settings.OptionSelectionLimit
		if limit < 1 {
			limit = 1
		}
		if len(c.OptionIDs) > limit {
			return model.ResponseContent{}, invalidContent(fmt.Sprintf("at most %d options may be selected", limit))
		}
		seen := make(map[string]bool, len(c.OptionIDs))
		for _, id := range c.OptionIDs {
			if _, ok := a.FindOption(id); !ok {
				return model.ResponseContent{}, invalidContent(fmt.Sprintf("unknown option %q", id))
			}
			if seen[id] {
				return model.ResponseContent{}, invalidContent(fmt.Sprintf("option %q selected twice", id))
			}
			seen[id] = true
		}
		if len(c.OptionIDs) == 1 {
			return model.ResponseContent{OptionID: c.OptionIDs[0]}, nil
		}
		return model.ResponseContent{OptionIDs: append([]string(nil), c.OptionIDs...)}, nil
	}
	if c.OptionID == "" {
		return model.ResponseContent{}, invalidContent("optionId is required")
	}
	if _, ok := a.FindOption(c.OptionID); !ok {
		return model.ResponseContent{}, invalidContent(fmt.Sprintf("unknown option %q", c.OptionID))
	}
	return model.ResponseContent{OptionID: c.OptionID}, nil
}

func validateCompetition(a *model.Activity, c model.ResponseContent) (model.ResponseContent, error) {
	if c.OptionID == "" {
		return model.ResponseContent{}, invalidContent("optionId is required")
	}
	opt, ok := a.FindOption(c.OptionID)
	if !ok {
		return model.ResponseContent{}, invalidContent(fmt.Sprintf("unknown option %q", c.OptionID))
	}
	correct := opt.Correct()

	var score int
	switch {
	case c.Score != nil:
		score = *c.Score
		if !correct && score != 0 {
			return model.ResponseContent{}, invalidContent("an incorrect answer scores 0")
		}
		if correct && (score < competitionBase || score > competitionBase+competitionBonus) {
			return model.ResponseContent{}, invalidContent("a correct answer scores between 1000 and 1500")
		}
	case c.TimeRemaining != nil:
		timer := a.Settings.TimerSeconds
		if timer == nil || *timer <= 0 {
			return model.ResponseContent{}, invalidContent("competition has no timer configured")
		}
		tr := *c.TimeRemaining
		if tr < 0 || tr > float64(*timer) || math.IsNaN(tr) {
			return model.ResponseContent{}, invalidContent("timeRemaining is outside the timer range")
		}
		score = CompetitionScore(correct, tr, float64(*timer))
	default:
		return model.ResponseContent{}, invalidContent("score or timeRemaining is required")
	}

	out := model.ResponseContent{OptionID: c.OptionID, Score: &score}
	if c.TimeRemaining != nil {
		tr := *c.TimeRemaining
		out.TimeRemaining = &tr
	}
	return out, nil
}

func validateRanking(a *model.Activity, c model.ResponseContent) (model.ResponseContent, error) {
	if len(c.Order) != len(a.Options) {
		return model.ResponseContent{}, invalidContent("order must rank every option exactly once")
	}
	seen := make(map[string]bool, len(c.Order))
	for _, id := range c.Order {
		if _, ok := a.FindOption(id); !ok {
			return model.ResponseContent{}, invalidContent(fmt.Sprintf("unknown option %q", id))
		}
		if seen[id] {
			return model.ResponseContent{}, invalidContent(fmt.Sprintf("option %q ranked twice", id))
		}
		seen[id] = true
	}
	return model.ResponseContent{Order: append([]string(nil), c.Order...)}, nil
}

func validateSurvey(a *model.Activity, c model.ResponseContent) (model.ResponseContent, error) {
	if len(c.Answers) == 0 {
		return model.ResponseContent{}, invalidContent("answers are required")
	}
	out := model.ResponseContent{Answers: make(map[string]model.ResponseContent, len(c.Answers))}
	for qid, ans := range c.Answers {
		q, ok := a.FindQuestion(qid)
		if !ok {
			return model.ResponseContent{}, invalidContent(fmt.Sprintf("unknown question %q", qid))
		}
		normalized, err := ValidateContent(q, ans)
		if err != nil {
			return model.ResponseContent{}, invalidContent(fmt.Sprintf("question %q: %s", qid, err.Error()))
		}
		out.Answers[qid] = normalized
	}
	return out, nil
}

// freeTexts collects every free-text field of c, including survey answers
func freeTexts(c model.ResponseContent) []string {
	var out []string
	if c.Text != "" {
		out = append(out, c.Text)
	}
	for _, ans := range c.Answers {
		out = append(out, freeTexts(ans)...)
	}
	return out
}

func invalidContent(msg string) error {
	return apperr.InvalidContent(msg, nil)
}
