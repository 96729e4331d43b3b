package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livepoll/internal/cache"
	"livepoll/internal/config"
	"livepoll/internal/model"
	"livepoll/internal/repository/memory"
	"livepoll/internal/service"
	"livepoll/internal/transport/ws"

	"github.com/gorilla/websocket"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	feed := cache.NewLocalLiveFeed()
	aggregates := cache.NewNoopAggregateCache()
	limiter := service.NewCallerLimiter(10, time.Minute)

	live := service.NewLiveService(store.Activities(), store.Profiles(), feed)
	runs := service.NewRunService(store.Activities(), store.Runs(), aggregates)
	synthesis := service.NewSynthesisService(store.Activities(), store.Responses(), store.Runs(), store.Syntheses(), store.Sessions(), service.MockAI{}, limiter, 5*time.Second)
	hub := ws.NewHub()
	auth := service.NewAuthService(store.Profiles(), "router-test-secret")

	c := &Container{
		AuthService:      auth,
		ActivityService:  service.NewActivityService(store.Activities(), store.Responses(), store.Folders(), store.Profiles(), live, aggregates, false),
		ResponseService:  service.NewResponseService(store.Activities(), store.Responses(), store.Profiles(), service.ProfanityFunc(func(string) bool { return false }), aggregates, config.PolicyReject),
		UpvoteService:    service.NewUpvoteService(store.Activities(), store.Responses(), store.Profiles(), aggregates),
		LiveService:      live,
		RunService:       runs,
		ExportService:    service.NewExportService(store.Activities(), store.Responses(), runs),
		SynthesisService: synthesis,
		DraftService:     service.NewDraftService(service.MockAI{}, limiter),
		FolderService:    service.NewFolderService(store.Folders(), store.Activities()),
		SessionService:   service.NewSessionService(store.Sessions(), store.Activities(), store.Profiles(), cache.NewLocalSessionCodeCache(), auth),
		WSHub:            hub,
	}
	c.ActivityService.SetBroadcaster(hub)
	c.ResponseService.SetBroadcaster(hub)
	c.UpvoteService.SetBroadcaster(hub)

	srv := httptest.NewServer(NewRouter(c))
	t.Cleanup(func() {
		srv.Close()
		synthesis.Wait()
		hub.Stop()
	})
	return &testServer{Server: srv, t: t}
}

// do sends body as JSON and decodes a JSON reply into out when out is non-nil
func (s *testServer) do(method, path, token string, body interface{}, out interface{}) int {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		s.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		s.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) register(handle string) model.LoginResponse {
	s.t.Helper()
	var login model.LoginResponse
	status := s.do("POST", "/v1/auth/register", "", model.RegisterRequest{
		Handle: handle, Name: "Prof " + handle, Email: handle + "@example.edu", Password: "correct horse",
	}, &login)
	if status != http.StatusCreated {
		s.t.Fatalf("register %s: status %d", handle, status)
	}
	return login
}

func (s *testServer) join(handle string) model.JoinResponse {
	s.t.Helper()
	var join model.JoinResponse
	if status := s.do("POST", "/v1/p/"+handle+"/join", "", nil, &join); status != http.StatusCreated {
		s.t.Fatalf("join %s: status %d", handle, status)
	}
	return join
}

// livePoll creates a two-option multiple choice activity and makes it live
func (s *testServer) livePoll(token string) model.Activity {
	s.t.Helper()
	var a model.Activity
	if status := s.do("POST", "/v1/activities", token, map[string]string{"type": "multiple_choice"}, &a); status != http.StatusCreated {
		s.t.Fatalf("create activity: status %d", status)
	}
	patch := map[string]interface{}{
		"title": "Which is faster?",
		"options": []model.Option{
			{ID: "a", Content: model.RichText{Text: "Light"}},
			{ID: "b", Content: model.RichText{Text: "Sound"}},
		},
	}
	if status := s.do("PATCH", "/v1/activities/"+a.ID, token, patch, &a); status != http.StatusOK {
		s.t.Fatalf("update activity: status %d", status)
	}
	if status := s.do("PUT", "/v1/live", token, map[string]string{"activityId": a.ID}, nil); status != http.StatusOK {
		s.t.Fatalf("activate: status %d", status)
	}
	return a
}

func TestLivePollRoundTrip(t *testing.T) {
	s := newTestServer(t)
	prof := s.register("drsmith")
	a := s.livePoll(prof.Token)

	var live struct {
		ActivityID *string         `json:"activityId"`
		Activity   *model.Activity `json:"activity"`
	}
	if status := s.do("GET", "/v1/p/drsmith/live", "", nil, &live); status != http.StatusOK {
		t.Fatalf("live: status %d", status)
	}
	if live.ActivityID == nil || *live.ActivityID != a.ID || live.Activity.Title != "Which is faster?" {
		t.Fatalf("live pointer %+v", live)
	}

	p1 := s.join("drsmith")
	p2 := s.join("DrSmith")
	base := "/v1/p/drsmith/activities/" + a.ID

	if status := s.do("POST", base+"/responses", p1.Token, model.ResponseContent{OptionID: "a"}, nil); status != http.StatusCreated {
		t.Fatalf("submit p1: status %d", status)
	}
	if status := s.do("POST", base+"/responses", p2.Token, model.ResponseContent{OptionID: "a"}, nil); status != http.StatusCreated {
		t.Fatalf("submit p2: status %d", status)
	}

	var dup map[string]string
	if status := s.do("POST", base+"/responses", p1.Token, model.ResponseContent{OptionID: "b"}, &dup); status != http.StatusConflict || dup["error"] != "already_submitted" {
		t.Errorf("repeat submission: status %d body %v", status, dup)
	}

	var bad map[string]string
	if status := s.do("POST", base+"/responses", p2.Token, model.ResponseContent{OptionID: "zzz"}, &bad); status == http.StatusCreated {
		t.Errorf("unknown option accepted")
	}

	var view model.AggregateView
	if status := s.do("GET", "/v1/activities/"+a.ID+"/results", prof.Token, nil, &view); status != http.StatusOK {
		t.Fatalf("results: status %d", status)
	}
	if view.TotalResponses != 2 || len(view.Counts) != 2 || view.Counts[0].Count != 2 || view.Counts[1].Count != 0 {
		t.Errorf("aggregate %+v", view)
	}

	var mine []model.Response
	if status := s.do("GET", base+"/responses/mine", p1.Token, nil, &mine); status != http.StatusOK || len(mine) != 1 {
		t.Errorf("my responses: status %d, %d responses", status, len(mine))
	}
}

func TestAuthBoundaries(t *testing.T) {
	s := newTestServer(t)
	prof := s.register("drsmith")
	s.register("drjones")
	a := s.livePoll(prof.Token)
	participant := s.join("drsmith")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token on professor route", "GET", "/v1/activities", "", http.StatusUnauthorized},
		{"participant token on professor route", "GET", "/v1/activities", participant.Token, http.StatusUnauthorized},
		{"garbage token", "GET", "/v1/activities", "not-a-jwt", http.StatusUnauthorized},
		{"professor token on participant route", "GET", "/v1/p/drsmith/activities/" + a.ID, prof.Token, http.StatusUnauthorized},
		{"participant of another page", "GET", "/v1/p/drjones/activities/" + a.ID, participant.Token, http.StatusForbidden},
		{"participant reads live activity", "GET", "/v1/p/drsmith/activities/" + a.ID, participant.Token, http.StatusOK},
		{"unknown handle", "POST", "/v1/p/nobody/join", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.do(tt.method, tt.path, tt.token, nil, nil); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNonOwnerCannotMutate(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("drsmith")
	other := s.register("drjones")
	a := s.livePoll(owner.Token)

	var body map[string]string
	if status := s.do("PATCH", "/v1/activities/"+a.ID, other.Token, map[string]string{"title": "mine now"}, &body); status != http.StatusForbidden || body["error"] != "forbidden" {
		t.Errorf("update by non-owner: %d %v", status, body)
	}
	if status := s.do("PUT", "/v1/live", other.Token, map[string]string{"activityId": a.ID}, nil); status != http.StatusForbidden {
		t.Errorf("activate by non-owner: %d", status)
	}
	if status := s.do("DELETE", "/v1/activities/"+a.ID, other.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("delete by non-owner: %d", status)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	status := s.do("POST", "/v1/auth/register", "", map[string]string{"handle": "x", "password": "short"}, &body)
	if status != http.StatusBadRequest || body["error"] != "invalid_input" {
		t.Errorf("register validation: %d %v", status, body)
	}

	prof := s.register("drsmith")
	if status := s.do("POST", "/v1/activities", prof.Token, map[string]string{"type": "interpretive_dance"}, nil); status != http.StatusBadRequest {
		t.Errorf("unknown activity type: %d", status)
	}
	if status := s.do("POST", "/v1/activities", prof.Token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("missing body: %d", status)
	}
	if status := s.do("POST", "/v1/auth/login", "", model.LoginRequest{Handle: "drsmith", Password: "wrong password"}, nil); status != http.StatusUnauthorized {
		t.Errorf("bad login: %d", status)
	}
}

func TestArchiveAndExport(t *testing.T) {
	s := newTestServer(t)
	prof := s.register("drsmith")
	a := s.livePoll(prof.Token)
	p := s.join("drsmith")
	s.do("POST", "/v1/p/drsmith/activities/"+a.ID+"/responses", p.Token, model.ResponseContent{OptionID: "b"}, nil)

	var run model.Run
	if status := s.do("POST", "/v1/activities/"+a.ID+"/runs", prof.Token, map[string]string{"name": "Lecture 1"}, &run); status != http.StatusCreated {
		t.Fatalf("archive: status %d", status)
	}
	if run.Name != "Lecture 1" || run.ResponseCount != 1 {
		t.Errorf("run %+v", run)
	}

	var runs []model.Run
	if status := s.do("GET", "/v1/activities/"+a.ID+"/runs", prof.Token, nil, &runs); status != http.StatusOK || len(runs) != 1 {
		t.Errorf("list runs: %d %v", status, runs)
	}

	req, _ := http.NewRequest("GET", s.URL+"/v1/runs/"+run.ID+"/export", nil)
	req.Header.Set("Authorization", "Bearer "+prof.Token)
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type %q", ct)
	}
	csvBody, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(csvBody), "Sound") {
		t.Errorf("export does not contain the chosen label:\n%s", csvBody)
	}

	// the participant can answer again in the next session
	if status := s.do("POST", "/v1/p/drsmith/activities/"+a.ID+"/responses", p.Token, model.ResponseContent{OptionID: "a"}, nil); status != http.StatusCreated {
		t.Errorf("resubmit after archive: %d", status)
	}
}

func TestSynthesisAndDraftEndpoints(t *testing.T) {
	s := newTestServer(t)
	prof := s.register("drsmith")

	var a model.Activity
	s.do("POST", "/v1/activities", prof.Token, map[string]string{"type": "open_ended"}, &a)
	s.do("PUT", "/v1/live", prof.Token, map[string]string{"activityId": a.ID}, nil)
	p := s.join("drsmith")
	s.do("POST", "/v1/p/drsmith/activities/"+a.ID+"/responses", p.Token, model.ResponseContent{Text: "momentum is conserved"}, nil)

	var syn model.Synthesis
	if status := s.do("POST", "/v1/activities/"+a.ID+"/synthesis", prof.Token, nil, &syn); status != http.StatusAccepted {
		t.Fatalf("request synthesis: status %d", status)
	}
	if syn.Status != model.SynthesisPending {
		t.Errorf("status %s, want pending", syn.Status)
	}

	var d model.Draft
	if status := s.do("POST", "/v1/ai/draft", prof.Token, map[string]string{"topic": "Optics"}, &d); status != http.StatusOK || d.Source != "mock" {
		t.Errorf("draft: %d %+v", status, d)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	if status := s.do("GET", "/health", "", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", status, body)
	}
	if status := s.do("GET", "/metrics", "", nil, nil); status != http.StatusOK {
		t.Errorf("metrics: %d", status)
	}

	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	if status := s.do("GET", "/swagger/doc.json", "", nil, &doc); status != http.StatusOK {
		t.Fatalf("swagger doc: %d", status)
	}
	if doc.BasePath != "/v1" {
		t.Errorf("swagger basePath %q", doc.BasePath)
	}
	if _, ok := doc.Paths["/s/{code}/join"]; !ok {
		t.Errorf("swagger doc lacks the session join path: %v", doc.Paths)
	}
}

func TestParticipantSocketFollowsLivePointer(t *testing.T) {
	s := newTestServer(t)
	prof := s.register("drsmith")
	p := s.join("drsmith")

	var a model.Activity
	s.do("POST", "/v1/activities", prof.Token, map[string]string{"type": "word_cloud"}, &a)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/ws/p/drsmith?token=" + p.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	type liveMsg struct {
		Type    string `json:"type"`
		Payload struct {
			ActivityID *string         `json:"activityId"`
			Activity   *model.Activity `json:"activity"`
		} `json:"payload"`
	}
	read := func() liveMsg {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m liveMsg
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatal(err)
		}
		return m
	}

	first := read()
	if first.Type != "live_changed" || first.Payload.ActivityID != nil {
		t.Fatalf("initial message %+v", first)
	}

	s.do("PUT", "/v1/live", prof.Token, map[string]string{"activityId": a.ID}, nil)
	next := read()
	if next.Type != "live_changed" || next.Payload.ActivityID == nil || *next.Payload.ActivityID != a.ID {
		t.Fatalf("after activate %+v", next)
	}
	if next.Payload.Activity == nil || next.Payload.Activity.Type != model.ActivityWordCloud {
		t.Errorf("activity not attached: %+v", next.Payload.Activity)
	}

	s.do("DELETE", "/v1/live", prof.Token, nil, nil)
	if cleared := read(); cleared.Payload.ActivityID != nil {
		t.Errorf("after deactivate %+v", cleared)
	}
}

func TestParticipantSocketRejectsForeignToken(t *testing.T) {
	s := newTestServer(t)
	s.register("drsmith")
	s.register("drjones")
	p := s.join("drjones")

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/ws/p/drsmith?token=" + p.Token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded with a token for another page")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("got response %v", resp)
	}
}

func TestSessionCodeJoin(t *testing.T) {
	s := newTestServer(t)
	prof := s.register("drsmith")
	other := s.register("drjones")
	a := s.livePoll(prof.Token)

	var sess model.Session
	body := model.CreateSessionRequest{Title: "Lecture 3", ActivityIDs: []string{a.ID}}
	if status := s.do("POST", "/v1/sessions", prof.Token, body, &sess); status != http.StatusCreated {
		t.Fatalf("create session: status %d", status)
	}
	if len(sess.Code) != 6 || sess.Status != model.SessionDraft {
		t.Fatalf("session %+v", sess)
	}

	var view model.SessionView
	if status := s.do("GET", "/v1/s/"+sess.Code, "", nil, &view); status != http.StatusOK {
		t.Fatalf("resolve: status %d", status)
	}
	if view.Handle != "drsmith" || view.LiveActivityID != nil {
		t.Errorf("draft session view %+v", view)
	}
	if status := s.do("POST", "/v1/s/"+sess.Code+"/join", "", nil, nil); status != http.StatusForbidden {
		t.Errorf("join draft session: status %d, want 403", status)
	}

	open := map[string]string{"status": "OPEN"}
	if status := s.do("PATCH", "/v1/sessions/"+sess.ID, other.Token, open, nil); status != http.StatusForbidden {
		t.Errorf("non-owner open: status %d, want 403", status)
	}
	if status := s.do("PATCH", "/v1/sessions/"+sess.ID, prof.Token, map[string]string{"status": "LIVE"}, nil); status != http.StatusBadRequest {
		t.Errorf("unknown status: status %d, want 400", status)
	}
	if status := s.do("PATCH", "/v1/sessions/"+sess.ID, prof.Token, open, nil); status != http.StatusOK {
		t.Fatalf("open session: status %d", status)
	}

	if status := s.do("GET", "/v1/s/"+strings.ToLower(sess.Code), "", nil, &view); status != http.StatusOK {
		t.Fatalf("resolve lowercase: status %d", status)
	}
	if view.LiveActivityID == nil || *view.LiveActivityID != a.ID {
		t.Errorf("open session view %+v", view)
	}

	var joined model.SessionJoinResponse
	if status := s.do("POST", "/v1/s/"+sess.Code+"/join", "", nil, &joined); status != http.StatusCreated {
		t.Fatalf("join: status %d", status)
	}
	if joined.Handle != "drsmith" || joined.Token == "" || joined.Session == nil {
		t.Fatalf("join response %+v", joined)
	}
	path := "/v1/p/drsmith/activities/" + a.ID + "/responses"
	if status := s.do("POST", path, joined.Token, model.ResponseContent{OptionID: "a"}, nil); status != http.StatusCreated {
		t.Errorf("submit with session token: status %d", status)
	}

	if status := s.do("GET", "/v1/s/NOPE42", "", nil, nil); status != http.StatusNotFound {
		t.Errorf("unknown code: status %d", status)
	}
	if status := s.do("DELETE", "/v1/sessions/"+sess.ID, prof.Token, nil, nil); status != http.StatusNoContent {
		t.Errorf("delete: status %d", status)
	}
	if status := s.do("POST", "/v1/s/"+sess.Code+"/join", "", nil, nil); status != http.StatusNotFound {
		t.Errorf("join deleted session: status %d, want 404", status)
	}
}

func TestUpvoteScopedToJoinedPage(t *testing.T) {
	s := newTestServer(t)
	smith := s.register("drsmith")
	jones := s.register("drjones")

	liveQA := func(token string) model.Activity {
		var a model.Activity
		if status := s.do("POST", "/v1/activities", token, map[string]string{"type": "qa"}, &a); status != http.StatusCreated {
			t.Fatalf("create qa: status %d", status)
		}
		if status := s.do("PUT", "/v1/live", token, map[string]string{"activityId": a.ID}, nil); status != http.StatusOK {
			t.Fatalf("activate qa: status %d", status)
		}
		return a
	}
	qa := liveQA(smith.Token)
	liveQA(jones.Token)

	author := s.join("drsmith")
	var question model.Response
	path := "/v1/p/drsmith/activities/" + qa.ID + "/responses"
	if status := s.do("POST", path, author.Token, model.ResponseContent{Text: "Why?"}, &question); status != http.StatusCreated {
		t.Fatalf("ask: status %d", status)
	}

	outsider := s.join("drjones")
	if status := s.do("POST", "/v1/p/drjones/responses/"+question.ID+"/upvote", outsider.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("upvote from another page: status %d, want 404", status)
	}
	var voted model.Response
	if status := s.do("POST", "/v1/p/drsmith/responses/"+question.ID+"/upvote", author.Token, nil, &voted); status != http.StatusOK || voted.Upvotes != 1 {
		t.Errorf("upvote on own page: status %d upvotes %d", status, voted.Upvotes)
	}
}
