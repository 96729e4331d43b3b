package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"

	"livepoll/internal/apperr"
	"livepoll/internal/cache"
	"livepoll/internal/config"
	"livepoll/internal/model"
	"livepoll/internal/repository"
)

func TestArchiveAndResetMovesLiveSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityMultipleChoice, optionsPatch("a", "b"))
	for i := 0; i < 3; i++ {
		f.submit(t, a.ID, fmt.Sprintf("p%d", i), model.ResponseContent{OptionID: "a"})
	}

	run, err := f.runs.ArchiveAndReset(ctx, f.id, a.ID, "Monday")
	if err != nil {
		t.Fatal(err)
	}
	if run.ResponseCount != 3 || run.Status != model.RunCompleted || run.Name != "Monday" {
		t.Errorf("unexpected run %+v", run)
	}
	if run.StartedAt.After(run.EndedAt) {
		t.Errorf("run started %v after it ended %v", run.StartedAt, run.EndedAt)
	}

	view, _ := f.responses.Aggregate(ctx, f.id, a.ID)
	if view.TotalResponses != 0 {
		t.Errorf("live set not empty after archive: %d", view.TotalResponses)
	}

	_, archived, err := f.runs.RunResponses(ctx, f.id, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 3 {
		t.Fatalf("archived %d responses", len(archived))
	}
	for _, r := range archived {
		if r.RunID == nil || *r.RunID != run.ID {
			t.Errorf("archived response %s has runId %v", r.ID, r.RunID)
		}
	}

	// participants can answer again in the next session
	f.submit(t, a.ID, "p0", model.ResponseContent{OptionID: "b"})

	runs, _ := f.runs.ListRuns(ctx, f.id, a.ID)
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("runs %+v", runs)
	}
}

func TestArchiveResetsArchivedActivityToDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityOpenEnded, nil)
	f.submit(t, a.ID, "p1", model.ResponseContent{Text: "hello there"})
	if _, err := f.activities.Transition(ctx, f.id, a.ID, model.StatusArchived); err != nil {
		t.Fatal(err)
	}

	run, err := f.runs.ArchiveAndReset(ctx, f.id, a.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(run.Name, "Session ") {
		t.Errorf("default name %q", run.Name)
	}
	stored, _ := f.store.Activities().GetByID(ctx, a.ID)
	if stored.Status != model.StatusDraft {
		t.Errorf("status %s, want DRAFT", stored.Status)
	}
}

func TestArchiveEmptyLiveSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.activities.Create(ctx, f.id, model.ActivityQA, nil)

	run, err := f.runs.ArchiveAndReset(ctx, f.id, a.ID, "empty")
	if err != nil {
		t.Fatal(err)
	}
	if run.ResponseCount != 0 || !run.StartedAt.Equal(run.EndedAt) {
		t.Errorf("empty run %+v", run)
	}
}

func TestRunAccessIsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.activities.Create(ctx, f.id, model.ActivityQA, nil)
	intruder := Identity{ProfessorID: "intruder"}

	if _, err := f.runs.ArchiveAndReset(ctx, intruder, a.ID, "x"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("archive: got %v", err)
	}
	run, _ := f.runs.ArchiveAndReset(ctx, f.id, a.ID, "x")
	if _, _, err := f.runs.RunResponses(ctx, intruder, run.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("run responses: got %v", err)
	}
	if _, err := f.runs.GetRun(ctx, f.id, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing run: got %v", err)
	}
}

func TestExportLiveAndRunCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	qs := []model.Activity{
		{ID: "q1", Title: "Pace", Type: model.ActivityMultipleChoice, Options: []model.Option{
			{ID: "slow", Content: model.RichText{Text: "Slow"}},
			{ID: "fast", Content: model.RichText{Text: "Fast"}},
		}},
		{ID: "q2", Title: "Comments", Type: model.ActivityOpenEnded},
		{ID: "q3", Title: "Order", Type: model.ActivityRanking, Options: []model.Option{
			{ID: "x", Content: model.RichText{Text: "X"}},
			{ID: "y", Content: model.RichText{Text: "Y"}},
		}},
	}
	a := f.liveActivity(t, model.ActivitySurvey, &model.ActivityPatch{Questions: &qs})
	f.submit(t, a.ID, "p1", model.ResponseContent{Answers: map[string]model.ResponseContent{
		"q1": {OptionID: "fast"},
		"q2": {Text: "More examples, please"},
		"q3": {Order: []string{"y", "x"}},
	}})
	f.submit(t, a.ID, "p2", model.ResponseContent{Answers: map[string]model.ResponseContent{
		"q1": {OptionID: "slow"},
	}})

	var buf bytes.Buffer
	if err := f.exports.ExportLive(ctx, f.id, a.ID, &buf); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	wantHeader := []string{"response_id", "participant_id", "submitted_at", "Pace", "Comments", "Order"}
	if strings.Join(rows[0], "|") != strings.Join(wantHeader, "|") {
		t.Errorf("header %v", rows[0])
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[1][1] != "p1" || rows[1][3] != "Fast" || rows[1][4] != "More examples, please" || rows[1][5] != `{"order":["y","x"]}` {
		t.Errorf("row 1 %v", rows[1])
	}
	if rows[2][3] != "Slow" || rows[2][4] != "" {
		t.Errorf("row 2 %v", rows[2])
	}

	run, _ := f.runs.ArchiveAndReset(ctx, f.id, a.ID, "w1")
	buf.Reset()
	if err := f.exports.ExportRun(ctx, f.id, run.ID, &buf); err != nil {
		t.Fatal(err)
	}
	rows, _ = csv.NewReader(&buf).ReadAll()
	if len(rows) != 3 {
		t.Errorf("run export has %d rows", len(rows))
	}

	if err := f.exports.ExportLive(ctx, Identity{ProfessorID: "intruder"}, a.ID, &buf); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("non-owner export: got %v", err)
	}
}

// archivingResponses archives the activity right after the next live set read
type archivingResponses struct {
	repository.ResponseRepo
	afterListLive func()
}

func (r *archivingResponses) ListLive(ctx context.Context, activityID string) ([]*model.Response, error) {
	rs, err := r.ResponseRepo.ListLive(ctx, activityID)
	if hook := r.afterListLive; hook != nil {
		r.afterListLive = nil
		hook()
	}
	return rs, err
}

func TestArchiveDuringAggregateLeavesNoStaleCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityMultipleChoice, optionsPatch("a", "b"))
	f.submit(t, a.ID, "p1", model.ResponseContent{OptionID: "a"})
	f.submit(t, a.ID, "p2", model.ResponseContent{OptionID: "b"})

	aggregates := cache.NewMemoryAggregateCache()
	runs := NewRunService(f.store.Activities(), f.store.Runs(), aggregates)
	slow := &archivingResponses{ResponseRepo: f.store.Responses()}
	responses := NewResponseService(f.store.Activities(), slow, f.store.Profiles(), ProfanityFunc(isBadWord), aggregates, config.PolicyReject)

	slow.afterListLive = func() {
		if _, err := runs.ArchiveAndReset(ctx, f.id, a.ID, "r1"); err != nil {
			t.Errorf("archive: %v", err)
		}
	}
	if _, err := responses.Aggregate(ctx, f.id, a.ID); err != nil {
		t.Fatal(err)
	}

	view, err := responses.Aggregate(ctx, f.id, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.TotalResponses != 0 {
		t.Errorf("aggregate after archive = %d responses, want 0", view.TotalResponses)
	}
	for _, c := range view.Counts {
		if c.Count != 0 {
			t.Errorf("option %s count %d after archive", c.OptionID, c.Count)
		}
	}
}
