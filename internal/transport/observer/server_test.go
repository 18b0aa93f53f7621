package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"debrisfx/internal/observerproto"
	"debrisfx/internal/sim/publish"
	"debrisfx/internal/sim/spawn"
)

func dial(t *testing.T, srv *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

func waitSessions(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.Sessions() != n {
		if time.Now().After(deadline) {
			t.Fatalf("sessions: got %d want %d", s.Sessions(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func snapshotOf(id uuid.UUID, base int64, n int) *publish.Snapshot {
	var seeds spawn.Seeds
	for i := 0; i < n; i++ {
		seeds.Append(spawn.Record{Position: mgl32.Vec3{float32(i), 1, 2}, SolverID: 1, Color: mgl32.Vec4{1, 0, 0, 1}})
	}
	return &publish.Snapshot{Instance: id, Tick: 3, LastSpawnedPointID: base, SolverTime: 0.5, Seeds: seeds.Take()}
}

func TestObserverReceivesSeedsAndTeardown(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	id := uuid.New()
	s.Track(id, "sparks", "collision")
	conn := dial(t, srv, observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version})

	var welcome observerproto.WelcomeMsg
	readJSON(t, conn, &welcome)
	if welcome.Type != observerproto.TypeWelcome || len(welcome.Instances) != 1 || welcome.Instances[0].Name != "sparks" {
		t.Fatalf("welcome: %+v", welcome)
	}
	waitSessions(t, s, 1)

	s.OnSnapshot(snapshotOf(id, 9, 3))
	var seeds observerproto.SeedsMsg
	readJSON(t, conn, &seeds)
	if seeds.Type != observerproto.TypeSeeds || seeds.Instance != id.String() || seeds.FirstPointID != 10 || seeds.Count != 3 {
		t.Fatalf("seeds: %+v", seeds)
	}
	for i, st := range seeds.Seeds {
		if st.PointID != 10+int64(i) || st.Position[0] != float32(i) || st.Color != [4]float32{1, 0, 0, 1} {
			t.Fatalf("seed %d: %+v", i, st)
		}
	}

	s.OnTeardown(id)
	var td observerproto.TeardownMsg
	readJSON(t, conn, &td)
	if td.Type != observerproto.TypeTeardown || td.Instance != id.String() {
		t.Fatalf("teardown: %+v", td)
	}
	if len(s.Instances()) != 0 {
		t.Fatalf("torn down instance still listed")
	}
}

func TestObserverFilterAndTruncation(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	a, b := uuid.New(), uuid.New()
	s.Track(a, "a", "collision")
	s.Track(b, "b", "breaking")
	conn := dial(t, srv, observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Instances:       []string{"b"},
		MaxSeeds:        2,
	})
	var welcome observerproto.WelcomeMsg
	readJSON(t, conn, &welcome)
	waitSessions(t, s, 1)

	s.OnSnapshot(snapshotOf(a, -1, 4))
	s.OnSnapshot(snapshotOf(b, -1, 4))

	var seeds observerproto.SeedsMsg
	readJSON(t, conn, &seeds)
	if seeds.Instance != b.String() {
		t.Fatalf("filtered instance leaked: %s", seeds.Instance)
	}
	if !seeds.Truncated || seeds.Count != 4 || len(seeds.Seeds) != 2 || seeds.FirstPointID != 0 {
		t.Fatalf("truncation: %+v", seeds)
	}
}

func TestObserverRejectsBadHandshake(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dial(t, srv, observerproto.SubscribeMsg{Type: "HELLO", ProtocolVersion: observerproto.Version})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected a policy violation close, got %v", err)
	}
	if s.Sessions() != 0 {
		t.Fatalf("rejected client registered a session")
	}
}

func TestSlowObserverDropsOldest(t *testing.T) {
	s := NewServer(nil)
	ss := &session{out: make(chan []byte, 2)}
	s.send(ss, []byte("1"))
	s.send(ss, []byte("2"))
	s.send(ss, []byte("3"))
	if got := string(<-ss.out) + string(<-ss.out); got != "23" {
		t.Fatalf("queue: got %q want %q", got, "23")
	}
	if s.Dropped() != 1 {
		t.Fatalf("dropped: %d", s.Dropped())
	}
}
