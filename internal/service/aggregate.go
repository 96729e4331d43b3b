package service

import (
	"sort"
	"strings"
	"unicode/utf8"

	"livepoll/internal/model"
)

const (
	maxWords         = 50
	leaderboardSize  = 5
	minWordRuneCount = 3
)

// stripped before tokenizing word-cloud text
var wordPunctuation = strings.NewReplacer(
	".", "", ",", "", "/", "", "#", "", "!", "", "$", "", "%", "", "^", "", "&", "",
	"*", "", ";", "", ":", "", "{", "", "}", "", "=", "", "-", "", "_", "", "`", "",
	"~", "", "(", "", ")", "",
)

// EmptyAggregate is the zero-filled view of an activity with no responses
func EmptyAggregate(a *model.Activity) *model.AggregateView {
	return BuildAggregate(a, nil)
}

// BuildAggregate derives the view of a from the live response set rs (ordered by arrival)
func BuildAggregate(a *model.Activity, rs []*model.Response) *model.AggregateView {
	view := &model.AggregateView{
		ActivityID:     a.ID,
		Type:           a.Type,
		TotalResponses: len(rs),
	}

	switch a.Type {
	case model.ActivityMultipleChoice:
		view.Counts = CountOptions(a.Options, rs)
	case model.ActivityCompetition:
		view.Counts = CountOptions(a.Options, rs)
		view.Leaderboard = Leaderboard(rs, leaderboardSize)
	case model.ActivityRanking:
		view.Counts = RankingPoints(a.Options, rs)
	case model.ActivityWordCloud:
		view.Words = WordFrequencies(texts(rs))
	case model.ActivityOpenEnded:
		view.Words = WordFrequencies(texts(rs))
		view.Texts = make([]model.TextEntry, 0, len(rs))
		for _, r := range rs {
			entry := model.TextEntry{ResponseID: r.ID, Text: r.Content.Text}
			if !a.Settings.IsAnonymous {
				entry.ParticipantID = r.ParticipantID
			}
			view.Texts = append(view.Texts, entry)
		}
	case model.ActivityQA:
		view.Questions, view.Pending = QAFeed(rs, a.Settings.IsAnonymous)
	case model.ActivityClickableImage:
		view.Points = ClickPoints(rs)
	case model.ActivitySurvey:
		view.Survey = make([]model.AggregateView, 0, len(a.Questions))
		for i := range a.Questions {
			q := &a.Questions[i]
			var sub []*model.Response
			for _, r := range rs {
				ans, ok := r.Content.Answers[q.ID]
				if !ok {
					continue
				}
				sub = append(sub, &model.Response{
					ID:            r.ID,
					ParticipantID: r.ParticipantID,
					Content:       ans,
					SubmittedAt:   r.SubmittedAt,
				})
			}
			view.Survey = append(view.Survey, *BuildAggregate(q, sub))
		}
	}
	return view
}

// CountOptions tallies selections per option, zero-filled and in option order.
// Selections of unknown ids are ignored, never bucketed.
func CountOptions(options []model.Option, rs []*model.Response) []model.OptionCount {
	counts := make([]model.OptionCount, len(options))
	index := make(map[string]int, len(options))
	for i, o := range options {
		counts[i] = model.OptionCount{OptionID: o.ID, Label: o.Content.Text}
		index[o.ID] = i
	}
	for _, r := range rs {
		if i, ok := index[r.Content.OptionID]; ok {
			counts[i].Count++
		}
		for _, id := range r.Content.OptionIDs {
			if i, ok := index[id]; ok {
				counts[i].Count++
			}
		}
	}
	return counts
}

// RankingPoints awards K-i points to the option ranked at position i (0-indexed) of a
// response ranking K options. K is per response, so options added later do not inflate older rankings.
func RankingPoints(options []model.Option, rs []*model.Response) []model.OptionCount {
	counts := make([]model.OptionCount, len(options))
	index := make(map[string]int, len(options))
	for i, o := range options {
		counts[i] = model.OptionCount{OptionID: o.ID, Label: o.Content.Text}
		index[o.ID] = i
	}
	for _, r := range rs {
		n := len(r.Content.Order)
		for pos, id := range r.Content.Order {
			if i, ok := index[id]; ok {
				counts[i].Points += n - pos
				counts[i].Count++
			}
		}
	}
	return counts
}

// WordFrequencies lowercases, strips punctuation, splits on whitespace, drops tokens of
// two characters or fewer and returns the top 50 by count. Ties keep first appearance.
func WordFrequencies(texts []string) []model.WordFrequency {
	counts := make(map[string]int)
	var order []string
	for _, t := range texts {
		clean := wordPunctuation.Replace(strings.ToLower(t))
		for _, tok := range strings.Fields(clean) {
			if utf8.RuneCountInString(tok) < minWordRuneCount {
				continue
			}
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	words := make([]model.WordFrequency, 0, len(order))
	for _, tok := range order {
		words = append(words, model.WordFrequency{Text: tok, Count: counts[tok]})
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].Count > words[j].Count })
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	if len(words) > 0 {
		maxCount := float64(words[0].Count)
		for i := range words {
			words[i].Size = 1 + 4*float64(words[i].Count)/maxCount
		}
	}
	return words
}

// Leaderboard returns the top n responses by score, ties broken by arrival order
func Leaderboard(rs []*model.Response, n int) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(rs))
	for _, r := range rs {
		if r.Content.Score == nil {
			continue
		}
		entries = append(entries, model.LeaderboardEntry{
			ResponseID:    r.ID,
			ParticipantID: r.ParticipantID,
			OptionID:      r.Content.OptionID,
			Score:         *r.Content.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// ClickPoints returns the raw click positions
func ClickPoints(rs []*model.Response) []model.Point {
	points := make([]model.Point, 0, len(rs))
	for _, r := range rs {
		if r.Content.Point != nil {
			points = append(points, *r.Content.Point)
		}
	}
	return points
}

// QAFeed splits Q&A responses into the visible feed (featured first, then by upvotes)
// and the moderation queue. Rejected questions appear in neither.
func QAFeed(rs []*model.Response, anonymous bool) (visible, pending []model.QAEntry) {
	visible = []model.QAEntry{}
	for _, r := range rs {
		entry := model.QAEntry{
			ResponseID: r.ID,
			Text:       r.Content.Text,
			Status:     r.Status,
			Upvotes:    r.Upvotes,
		}
		if !anonymous {
			entry.ParticipantID = r.ParticipantID
		}
		switch r.Status {
		case model.ResponseApproved, model.ResponseFeatured:
			visible = append(visible, entry)
		case model.ResponsePending:
			pending = append(pending, entry)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		fi, fj := visible[i].Status == model.ResponseFeatured, visible[j].Status == model.ResponseFeatured
		if fi != fj {
			return fi
		}
		return visible[i].Upvotes > visible[j].Upvotes
	})
	return visible, pending
}

func texts(rs []*model.Response) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Content.Text != "" {
			out = append(out, r.Content.Text)
		}
	}
	return out
}
