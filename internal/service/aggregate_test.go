package service

import (
	"testing"
	"time"

	"livepoll/internal/model"
)

func choice(id, participant, option string) *model.Response {
	return &model.Response{ID: id, ParticipantID: participant, Content: model.ResponseContent{OptionID: option}}
}

func TestCountOptionsSumsToResponsesAndZeroFills(t *testing.T) {
	opts := []model.Option{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	rs := []*model.Response{
		choice("1", "p1", "a"),
		choice("2", "p2", "a"),
		choice("3", "p3", "b"),
		choice("4", "p4", "ghost"),
	}
	counts := CountOptions(opts, rs)
	if len(counts) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(counts))
	}
	want := map[string]int{"a": 2, "b": 1, "c": 0}
	sum := 0
	for _, c := range counts {
		if c.Count != want[c.OptionID] {
			t.Errorf("option %s: got %d want %d", c.OptionID, c.Count, want[c.OptionID])
		}
		sum += c.Count
	}
	if sum != 3 {
		t.Errorf("sum of counts = %d, want 3 (unknown option ignored)", sum)
	}
}

func TestCountOptionsMultiSelect(t *testing.T) {
	opts := []model.Option{{ID: "a"}, {ID: "b"}}
	rs := []*model.Response{
		{ID: "1", Content: model.ResponseContent{OptionIDs: []string{"a", "b"}}},
		{ID: "2", Content: model.ResponseContent{OptionID: "b"}},
	}
	counts := CountOptions(opts, rs)
	if counts[0].Count != 1 || counts[1].Count != 2 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestRankingPointsTotal(t *testing.T) {
	opts := []model.Option{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	rs := []*model.Response{
		{ID: "1", Content: model.ResponseContent{Order: []string{"a", "b", "c"}}},
		{ID: "2", Content: model.ResponseContent{Order: []string{"c", "a", "b"}}},
	}
	points := RankingPoints(opts, rs)
	total := 0
	got := map[string]int{}
	for _, p := range points {
		total += p.Points
		got[p.OptionID] = p.Points
	}
	// each ranking of K options distributes K(K+1)/2 points
	if total != 2*6 {
		t.Errorf("total points = %d, want 12", total)
	}
	if got["a"] != 5 || got["b"] != 3 || got["c"] != 4 {
		t.Errorf("unexpected points %v", got)
	}
}

func TestRankingPointsIgnoresOptionsAddedLater(t *testing.T) {
	opts := []model.Option{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	rs := []*model.Response{
		{ID: "1", Content: model.ResponseContent{Order: []string{"a", "b", "c"}}},
	}
	points := RankingPoints(opts, rs)
	total := 0
	for _, p := range points {
		total += p.Points
	}
	if total != 6 {
		t.Fatalf("total points = %d, want 6", total)
	}
	if points[0].Points != 3 || points[3].Points != 0 || points[3].Count != 0 {
		t.Errorf("unexpected points %+v", points)
	}
}

func TestWordFrequencies(t *testing.T) {
	words := WordFrequencies([]string{"Go is fun!", "go, GO... fun", "a an the"})

	// go, is, a and an are too short
	if len(words) != 2 {
		t.Fatalf("expected fun and the, got %+v", words)
	}
	if words[0].Text != "fun" || words[0].Count != 2 || words[0].Size != 5 {
		t.Errorf("most frequent word should be fun x2 with size 5, got %+v", words[0])
	}
	if words[1].Text != "the" || words[1].Count != 1 || words[1].Size != 3 {
		t.Errorf("second word should be the x1 with size 3, got %+v", words[1])
	}
}

func TestWordFrequenciesTiesKeepFirstAppearance(t *testing.T) {
	words := WordFrequencies([]string{"zebra apple", "mango"})
	got := []string{}
	for _, w := range words {
		got = append(got, w.Text)
	}
	if len(got) != 3 || got[0] != "zebra" || got[1] != "apple" || got[2] != "mango" {
		t.Errorf("tie order %v", got)
	}
}

func TestWordFrequenciesCapsAtFifty(t *testing.T) {
	var texts []string
	for i := 0; i < 80; i++ {
		texts = append(texts, "word"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	if got := len(WordFrequencies(texts)); got != 50 {
		t.Errorf("got %d words, want 50", got)
	}
}

func TestLeaderboardTopFiveStable(t *testing.T) {
	base := time.Now()
	var rs []*model.Response
	scores := []int{1200, 0, 1500, 1200, 1100, 1300, 1000}
	for i, s := range scores {
		score := s
		rs = append(rs, &model.Response{
			ID:            string(rune('a' + i)),
			ParticipantID: string(rune('A' + i)),
			Content:       model.ResponseContent{OptionID: "x", Score: &score},
			SubmittedAt:   base.Add(time.Duration(i) * time.Second),
		})
	}
	board := Leaderboard(rs, 5)
	if len(board) != 5 {
		t.Fatalf("leaderboard size %d", len(board))
	}
	want := []string{"c", "f", "a", "d", "e"}
	for i, e := range board {
		if e.ResponseID != want[i] {
			t.Errorf("rank %d: got %s want %s", i+1, e.ResponseID, want[i])
		}
	}
}

func TestCompetitionScore(t *testing.T) {
	tests := []struct {
		name      string
		correct   bool
		remaining float64
		total     float64
		want      int
	}{
		{"correct half time", true, 15, 30, 1250},
		{"correct instant", true, 30, 30, 1500},
		{"correct at buzzer", true, 0, 30, 1000},
		{"wrong", false, 30, 30, 0},
		{"overshoot clamps", true, 45, 30, 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompetitionScore(tt.correct, tt.remaining, tt.total); got != tt.want {
				t.Errorf("got %d want %d", got, tt.want)
			}
		})
	}
}

func TestQAFeedOrderingAndModeration(t *testing.T) {
	rs := []*model.Response{
		{ID: "1", ParticipantID: "p1", Status: model.ResponseApproved, Upvotes: 1},
		{ID: "2", ParticipantID: "p2", Status: model.ResponseApproved, Upvotes: 5},
		{ID: "3", ParticipantID: "p3", Status: model.ResponseFeatured, Upvotes: 0},
		{ID: "4", ParticipantID: "p4", Status: model.ResponsePending},
		{ID: "5", ParticipantID: "p5", Status: model.ResponseRejected},
	}
	visible, pending := QAFeed(rs, true)
	order := []string{}
	for _, q := range visible {
		order = append(order, q.ResponseID)
		if q.ParticipantID != "" {
			t.Errorf("anonymous feed leaked participant id %q", q.ParticipantID)
		}
	}
	if len(order) != 3 || order[0] != "3" || order[1] != "2" || order[2] != "1" {
		t.Errorf("visible order %v", order)
	}
	if len(pending) != 1 || pending[0].ResponseID != "4" {
		t.Errorf("pending %+v", pending)
	}
}

func TestBuildAggregateSurvey(t *testing.T) {
	a := &model.Activity{
		ID:   "s",
		Type: model.ActivitySurvey,
		Questions: []model.Activity{
			{ID: "q1", Type: model.ActivityMultipleChoice, Options: []model.Option{{ID: "a"}, {ID: "b"}}},
			{ID: "q2", Type: model.ActivityWordCloud},
		},
	}
	rs := []*model.Response{
		{ID: "1", Content: model.ResponseContent{Answers: map[string]model.ResponseContent{
			"q1": {OptionID: "a"},
			"q2": {Text: "banana bread"},
		}}},
		{ID: "2", Content: model.ResponseContent{Answers: map[string]model.ResponseContent{
			"q1": {OptionID: "b"},
		}}},
	}
	view := BuildAggregate(a, rs)
	if view.TotalResponses != 2 || len(view.Survey) != 2 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Survey[0].TotalResponses != 2 || view.Survey[1].TotalResponses != 1 {
		t.Errorf("sub-question totals %d/%d", view.Survey[0].TotalResponses, view.Survey[1].TotalResponses)
	}
	if len(view.Survey[1].Words) != 2 {
		t.Errorf("expected two words, got %+v", view.Survey[1].Words)
	}
}
