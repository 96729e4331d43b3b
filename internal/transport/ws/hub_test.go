package ws

import (
	"encoding/json"
	"testing"
	"time"
)

func newConn(professorID, participantID, role string) *Connection {
	return &Connection{ProfessorID: professorID, ParticipantID: participantID, Role: role, Send: make(chan []byte, 16)}
}

func receive(t *testing.T, conn *Connection) Message {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestHubRoutesByProfessorAndRole(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	presenter := newConn("prof-1", "", RolePresenter)
	otherPresenter := newConn("prof-2", "", RolePresenter)
	h.Register(presenter)
	h.Register(otherPresenter)

	participant := newConn("prof-1", "p_1", RoleParticipant)
	h.Register(participant)
	joined := receive(t, presenter)
	if joined.Type != MsgParticipantJoined {
		t.Fatalf("presenter got %s, want participant_joined", joined.Type)
	}

	h.BroadcastToParticipants("prof-1", "activity_updated", map[string]string{"activityId": "a1"})
	msg := receive(t, participant)
	if msg.Type != "activity_updated" || string(msg.Payload) != `{"activityId":"a1"}` {
		t.Errorf("participant got %+v", msg)
	}

	h.BroadcastToPresenter("prof-1", "response_submitted", map[string]int{"total": 1})
	if got := receive(t, presenter); got.Type != "response_submitted" {
		t.Errorf("presenter got %s", got.Type)
	}

	h.BroadcastToPresenter("prof-2", "response_submitted", nil)
	receive(t, otherPresenter)
	select {
	case data := <-presenter.Send:
		t.Errorf("prof-1 presenter received another professor's event: %s", data)
	default:
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	presenter := newConn("prof-1", "", RolePresenter)
	participant := newConn("prof-1", "p_1", RoleParticipant)
	h.Register(presenter)
	h.Register(participant)
	receive(t, presenter)

	h.Unregister(participant)
	left := receive(t, presenter)
	if left.Type != MsgParticipantLeft {
		t.Errorf("got %s, want participant_left", left.Type)
	}
	if _, ok := <-participant.Send; ok {
		t.Error("send channel still open after unregister")
	}

	// a second unregister is ignored
	h.Unregister(participant)
}
