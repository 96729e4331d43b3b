// Package memory is an in-process storage adapter implementing every repository
// interface. It backs STORAGE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"livepoll/internal/model"
	"livepoll/internal/repository"
)

// Store holds all collections behind a single lock
type Store struct {
	mu           sync.RWMutex
	seq          int64
	activities   map[string]*model.Activity
	activitySeq  map[string]int64
	responses    map[string]*model.Response
	responseSeq  map[string]int64
	dedupe       map[string]string
	runs         map[string]*model.Run
	runResponses map[string][]*model.Response
	profiles     map[string]*model.Profile
	folders      map[string]*model.Folder
	syntheses    map[string]*model.Synthesis
	sessions     map[string]*model.Session
}

// New creates an empty store
func New() *Store {
	return &Store{
		activities:   make(map[string]*model.Activity),
		activitySeq:  make(map[string]int64),
		responses:    make(map[string]*model.Response),
		responseSeq:  make(map[string]int64),
		dedupe:       make(map[string]string),
		runs:         make(map[string]*model.Run),
		runResponses: make(map[string][]*model.Response),
		profiles:     make(map[string]*model.Profile),
		folders:      make(map[string]*model.Folder),
		syntheses:    make(map[string]*model.Synthesis),
		sessions:     make(map[string]*model.Session),
	}
}

func (s *Store) Activities() repository.ActivityRepo { return activityStore{s} }
func (s *Store) Responses() repository.ResponseRepo { return responseStore{s} }
func (s *Store) Runs() repository.RunRepo { return runStore{s} }
func (s *Store) Profiles() repository.ProfileRepo { return profileStore{s} }
func (s *Store) Folders() repository.FolderRepo { return folderStore{s} }
func (s *Store) Syntheses() repository.SynthesisRepo { return synthesisStore{s} }
func (s *Store) Sessions() repository.SessionRepo { return sessionStore{s} }

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// activities

type activityStore struct{ s *Store }

func (r activityStore) Create(ctx context.Context, a *model.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.activities[a.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.activities[a.ID] = a.Clone()
	r.s.activitySeq[a.ID] = r.s.next()
	return nil
}

func (r activityStore) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.activities[id].Clone(), nil
}

func (r activityStore) Update(ctx context.Context, a *model.Activity, expectedRevision int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.activities[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Revision != expectedRevision || cur.Status != a.Status {
		return repository.ErrVersionConflict
	}
	r.s.activities[a.ID] = a.Clone()
	return nil
}

func (r activityStore) TransitionStatus(ctx context.Context, id string, from, to model.ActivityStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.activities[id]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status = to
	cur.UpdatedAt = time.Now()
	return true, nil
}

func (r activityStore) List(ctx context.Context, filter repository.ActivityFilter) iter.Seq2[*model.Activity, error] {
	return func(yield func(*model.Activity, error) bool) {
		r.s.mu.RLock()
		var matched []*model.Activity
		for _, a := range r.s.activities {
			if a.Status == model.StatusTrash {
				continue
			}
			if filter.FolderID == nil {
				if a.OwnerID != filter.OwnerID || a.FolderID != nil {
					continue
				}
			} else if a.FolderID == nil || *a.FolderID != *filter.FolderID {
				continue
			}
			matched = append(matched, a.Clone())
		}
		seq := make(map[string]int64, len(matched))
		for _, a := range matched {
			seq[a.ID] = r.s.activitySeq[a.ID]
		}
		r.s.mu.RUnlock()

		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return seq[matched[i].ID] > seq[matched[j].ID]
		})
		for _, a := range matched {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(a, nil) {
				return
			}
		}
	}
}

func (r activityStore) CountInFolder(ctx context.Context, folderID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, a := range r.s.activities {
		if a.Status != model.StatusTrash && a.FolderID != nil && *a.FolderID == folderID {
			n++
		}
	}
	return n, nil
}

// responses

type responseStore struct{ s *Store }

func (r responseStore) Create(ctx context.Context, resp *model.Response) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.responses[resp.ID]; ok {
		return repository.ErrDuplicate
	}
	if resp.DedupeKey != "" {
		if _, taken := r.s.dedupe[resp.DedupeKey]; taken {
			return repository.ErrDuplicate
		}
		r.s.dedupe[resp.DedupeKey] = resp.ID
	}
	c := resp.Clone()
	r.s.responses[resp.ID] = c
	r.s.responseSeq[resp.ID] = r.s.next()
	return nil
}

func (r responseStore) GetByID(ctx context.Context, id string) (*model.Response, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.responses[id].Clone(), nil
}

func (r responseStore) UpdateContent(ctx context.Context, id string, content model.ResponseContent, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.responses[id]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Content = content.Clone()
	cur.UpdatedAt = at
	return nil
}

func (r responseStore) SetStatus(ctx context.Context, id string, status model.ResponseStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.responses[id]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Status = status
	cur.UpdatedAt = time.Now()
	return nil
}

func (r responseStore) ListLive(ctx context.Context, activityID string) ([]*model.Response, error) {
	return r.filter(func(resp *model.Response) bool { return resp.ActivityID == activityID }), nil
}

func (r responseStore) ListByParticipant(ctx context.Context, activityID, participantID string) ([]*model.Response, error) {
	return r.filter(func(resp *model.Response) bool {
		return resp.ActivityID == activityID && resp.ParticipantID == participantID
	}), nil
}

func (r responseStore) CountLive(ctx context.Context, activityID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, resp := range r.s.responses {
		if resp.ActivityID == activityID {
			n++
		}
	}
	return n, nil
}

func (r responseStore) ToggleUpvote(ctx context.Context, id, participantID string) (*model.Response, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.responses[id]
	if !ok {
		return nil, nil
	}
	if cur.HasUpvoter(participantID) {
		kept := cur.UpvoterIDs[:0]
		for _, p := range cur.UpvoterIDs {
			if p != participantID {
				kept = append(kept, p)
			}
		}
		cur.UpvoterIDs = kept
		cur.Upvotes--
	} else {
		cur.UpvoterIDs = append(cur.UpvoterIDs, participantID)
		cur.Upvotes++
	}
	return cur.Clone(), nil
}

func (r responseStore) filter(keep func(*model.Response) bool) []*model.Response {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Response
	for _, resp := range r.s.responses {
		if keep(resp) {
			out = append(out, resp.Clone())
		}
	}
	sortResponses(out, r.s.responseSeq)
	return out
}

func sortResponses(rs []*model.Response, seq map[string]int64) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].SubmittedAt.Equal(rs[j].SubmittedAt) {
			return rs[i].SubmittedAt.Before(rs[j].SubmittedAt)
		}
		return seq[rs[i].ID] < seq[rs[j].ID]
	})
}

// runs

type runStore struct{ s *Store }

func (r runStore) Archive(ctx context.Context, run *model.Run) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.runs[run.ID]; ok {
		return 0, repository.ErrDuplicate
	}

	var live []*model.Response
	for _, resp := range r.s.responses {
		if resp.ActivityID == run.ActivityID {
			live = append(live, resp)
		}
	}
	sortResponses(live, r.s.responseSeq)

	run.ResponseCount = len(live)
	run.StartedAt = run.EndedAt
	if len(live) > 0 {
		run.StartedAt = live[0].SubmittedAt
	}

	moved := make([]*model.Response, 0, len(live))
	for _, resp := range live {
		c := resp.Clone()
		runID := run.ID
		c.RunID = &runID
		moved = append(moved, c)
		delete(r.s.responses, resp.ID)
		delete(r.s.responseSeq, resp.ID)
		if resp.DedupeKey != "" {
			delete(r.s.dedupe, resp.DedupeKey)
		}
	}
	stored := *run
	r.s.runs[run.ID] = &stored
	r.s.runResponses[run.ID] = moved
	return len(moved), nil
}

func (r runStore) GetByID(ctx context.Context, id string) (*model.Run, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	run, ok := r.s.runs[id]
	if !ok {
		return nil, nil
	}
	c := *run
	return &c, nil
}

func (r runStore) ListByActivity(ctx context.Context, activityID string) ([]*model.Run, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Run
	for _, run := range r.s.runs {
		if run.ActivityID == activityID {
			c := *run
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	return out, nil
}

func (r runStore) Responses(ctx context.Context, runID string) ([]*model.Response, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	src := r.s.runResponses[runID]
	out := make([]*model.Response, len(src))
	for i, resp := range src {
		out[i] = resp.Clone()
	}
	return out, nil
}

// profiles

type profileStore struct{ s *Store }

func (r profileStore) Create(ctx context.Context, p *model.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[p.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range r.s.profiles {
		if existing.Handle == p.Handle {
			return repository.ErrDuplicate
		}
	}
	r.s.profiles[p.ID] = cloneProfile(p)
	return nil
}

func (r profileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, nil
	}
	return cloneProfile(p), nil
}

func (r profileStore) GetByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.profiles {
		if p.Handle == handle {
			return cloneProfile(p), nil
		}
	}
	return nil, nil
}

func (r profileStore) SetCurrentActivity(ctx context.Context, professorID string, activityID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[professorID]
	if !ok {
		return repository.ErrNotFound
	}
	p.CurrentActivityID = copyString(activityID)
	return nil
}

func (r profileStore) ClearCurrentActivityIf(ctx context.Context, professorID, activityID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[professorID]
	if !ok || p.CurrentActivityID == nil || *p.CurrentActivityID != activityID {
		return false, nil
	}
	p.CurrentActivityID = nil
	return true, nil
}

func cloneProfile(p *model.Profile) *model.Profile {
	c := *p
	c.CurrentActivityID = copyString(p.CurrentActivityID)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// folders

type folderStore struct{ s *Store }

func (r folderStore) Create(ctx context.Context, f *model.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.folders[f.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *f
	c.ParentFolderID = copyString(f.ParentFolderID)
	r.s.folders[f.ID] = &c
	return nil
}

func (r folderStore) GetByID(ctx context.Context, id string) (*model.Folder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.folders[id]
	if !ok {
		return nil, nil
	}
	c := *f
	return &c, nil
}

func (r folderStore) List(ctx context.Context, ownerID string, parentID *string) ([]*model.Folder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Folder
	for _, f := range r.s.folders {
		if f.OwnerID != ownerID {
			continue
		}
		if (parentID == nil) != (f.ParentFolderID == nil) {
			continue
		}
		if parentID != nil && *parentID != *f.ParentFolderID {
			continue
		}
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r folderStore) Rename(ctx context.Context, id, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.folders[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.Name = name
	return nil
}

func (r folderStore) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.folders, id)
	return nil
}

// syntheses

type synthesisStore struct{ s *Store }

func (r synthesisStore) Save(ctx context.Context, syn *model.Synthesis) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *syn
	r.s.syntheses[syn.ActivityID] = &c
	return nil
}

func (r synthesisStore) Get(ctx context.Context, activityID string) (*model.Synthesis, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	syn, ok := r.s.syntheses[activityID]
	if !ok {
		return nil, nil
	}
	c := *syn
	return &c, nil
}

// sessions

type sessionStore struct{ s *Store }

func (r sessionStore) Create(ctx context.Context, sess *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.ID == sess.ID || existing.Code == sess.Code {
			return repository.ErrDuplicate
		}
	}
	r.s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (r sessionStore) GetByID(ctx context.Context, id string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

func (r sessionStore) GetByCode(ctx context.Context, code string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sess := range r.s.sessions {
		if sess.Code == code {
			return cloneSession(sess), nil
		}
	}
	return nil, nil
}

func (r sessionStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Session
	for _, sess := range r.s.sessions {
		if sess.OwnerID == ownerID {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r sessionStore) Update(ctx context.Context, sess *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[sess.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (r sessionStore) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r sessionStore) SetAnalysis(ctx context.Context, ownerID, activityID string, result *model.SynthesisResult) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.OwnerID != ownerID || !sess.HasActivity(activityID) {
			continue
		}
		if sess.Analysis == nil {
			sess.Analysis = make(map[string]*model.SynthesisResult)
		}
		sess.Analysis[activityID] = result
		n++
	}
	return n, nil
}

func cloneSession(sess *model.Session) *model.Session {
	c := *sess
	c.ActivityIDs = append([]string(nil), sess.ActivityIDs...)
	if sess.Analysis != nil {
		c.Analysis = make(map[string]*model.SynthesisResult, len(sess.Analysis))
		for k, v := range sess.Analysis {
			c.Analysis[k] = v
		}
	}
	return &c
}
