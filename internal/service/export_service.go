package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/model"
	"livepoll/internal/repository"
)

// ExportService renders response sets as CSV
type ExportService struct {
	activities repository.ActivityRepo
	responses  repository.ResponseRepo
	runs       *RunService
}

// NewExportService creates a new export service
func NewExportService(activities repository.ActivityRepo, responses repository.ResponseRepo, runs *RunService) *ExportService {
	return &ExportService{
		activities: activities,
		responses:  responses,
		runs:       runs,
	}
}

// ExportLive writes the live response set of an activity
func (s *ExportService) ExportLive(ctx context.Context, id Identity, activityID string, w io.Writer) error {
	if err := RequireIdentity(id); err != nil {
		return err
	}
	a, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return err
	}
	if a == nil || a.Status == model.StatusTrash {
		return apperr.NotFound("activity not found", nil)
	}
	if err := RequireOwner(id, a.OwnerID); err != nil {
		return err
	}
	rs, err := s.responses.ListLive(ctx, a.ID)
	if err != nil {
		return err
	}
	return WriteResponsesCSV(w, a, rs)
}

// ExportRun writes the archived responses of a run
func (s *ExportService) ExportRun(ctx context.Context, id Identity, runID string, w io.Writer) error {
	run, rs, err := s.runs.RunResponses(ctx, id, runID)
	if err != nil {
		return err
	}
	a, err := s.activities.GetByID(ctx, run.ActivityID)
	if err != nil {
		return err
	}
	if a == nil {
		return apperr.NotFound("activity not found", nil)
	}
	return WriteResponsesCSV(w, a, rs)
}

// WriteResponsesCSV writes one row per response with one column per question.
// Survey activities get a column per sub-question; structured answers are JSON encoded.
func WriteResponsesCSV(w io.Writer, a *model.Activity, rs []*model.Response) error {
	questions := []*model.Activity{a}
	if a.Type == model.ActivitySurvey {
		questions = questions[:0]
		for i := range a.Questions {
			questions = append(questions, &a.Questions[i])
		}
	}

	cw := csv.NewWriter(w)
	header := []string{"response_id", "participant_id", "submitted_at"}
	for _, q := range questions {
		title := q.Title
		if title == "" {
			title = q.ID
		}
		header = append(header, title)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rs {
		participant := r.ParticipantID
		if a.Settings.IsAnonymous {
			participant = ""
		}
		row := []string{r.ID, participant, r.SubmittedAt.UTC().Format(time.RFC3339)}
		for _, q := range questions {
			content := r.Content
			if a.Type == model.ActivitySurvey {
				ans, ok := r.Content.Answers[q.ID]
				if !ok {
					row = append(row, "")
					continue
				}
				content = ans
			}
			cell, err := exportCell(q, content)
			if err != nil {
				return err
			}
			row = append(row, cell)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportCell(q *model.Activity, c model.ResponseContent) (string, error) {
	switch {
	case c.Text != "":
		return c.Text, nil
	case c.OptionID != "" && c.Score == nil:
		if o, ok := q.FindOption(c.OptionID); ok {
			return o.Content.Text, nil
		}
		return c.OptionID, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
