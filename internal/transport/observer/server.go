package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"debrisfx/internal/observerproto"
	"debrisfx/internal/sim/publish"
)

const (
	defaultMaxSeeds = 1024
	maxMaxSeeds     = 65536
	sessionQueue    = 64
)

// Server streams consumed snapshots to websocket observers. It is a
// publish.Sink: the consumer goroutine calls OnSnapshot and OnTeardown.
type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu        sync.Mutex
	sessions  map[string]*session
	instances map[uuid.UUID]observerproto.InstanceInfo
}

type session struct {
	id  string
	out chan []byte

	mu       sync.Mutex
	filter   map[string]bool
	maxSeeds int
}

func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions:  map[string]*session{},
		instances: map[uuid.UUID]observerproto.InstanceInfo{},
	}
}

// Track makes an instance known to observers by name.
func (s *Server) Track(id uuid.UUID, name, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[id] = observerproto.InstanceInfo{ID: id.String(), Name: name, Kind: kind}
}

func (s *Server) Instances() []observerproto.InstanceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]observerproto.InstanceInfo, 0, len(s.instances))
	for _, in := range s.instances {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sessions returns the number of connected observers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Dropped counts messages discarded for slow observers.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) OnSnapshot(snap *publish.Snapshot) {
	s.mu.Lock()
	info := s.instances[snap.Instance]
	targets := make([]*session, 0, len(s.sessions))
	for _, ss := range s.sessions {
		targets = append(targets, ss)
	}
	s.mu.Unlock()

	if info.ID == "" {
		info.ID = snap.Instance.String()
	}
	encoded := map[int][]byte{}
	for _, ss := range targets {
		wants, limit := ss.wants(info)
		if !wants {
			continue
		}
		b, ok := encoded[limit]
		if !ok {
			var err error
			b, err = json.Marshal(seedsMsg(snap, limit))
			if err != nil {
				s.log.Printf("observer: encode seeds: %v", err)
				return
			}
			encoded[limit] = b
		}
		s.send(ss, b)
	}
}

func (s *Server) OnTeardown(id uuid.UUID) {
	s.mu.Lock()
	info, ok := s.instances[id]
	delete(s.instances, id)
	targets := make([]*session, 0, len(s.sessions))
	for _, ss := range s.sessions {
		targets = append(targets, ss)
	}
	s.mu.Unlock()
	if !ok {
		info.ID = id.String()
	}

	b, _ := json.Marshal(observerproto.TeardownMsg{
		Type:            observerproto.TypeTeardown,
		ProtocolVersion: observerproto.Version,
		Instance:        id.String(),
	})
	for _, ss := range targets {
		if wants, _ := ss.wants(info); wants {
			s.send(ss, b)
		}
	}
}

func seedsMsg(snap *publish.Snapshot, limit int) observerproto.SeedsMsg {
	first, _, n := snap.IDRange()
	m := observerproto.SeedsMsg{
		Type:            observerproto.TypeSeeds,
		ProtocolVersion: observerproto.Version,
		Instance:        snap.Instance.String(),
		Tick:            snap.Tick,
		SolverTime:      snap.SolverTime,
		FirstPointID:    first,
		Count:           n,
	}
	k := n
	if k > limit {
		k = limit
		m.Truncated = true
	}
	m.Seeds = make([]observerproto.SeedState, k)
	seeds := &snap.Seeds
	for i := 0; i < k; i++ {
		st := observerproto.SeedState{PointID: first + int64(i)}
		if i < len(seeds.Position) {
			st.Position = seeds.Position[i]
		}
		if i < len(seeds.Velocity) {
			st.Velocity = seeds.Velocity[i]
		}
		if i < len(seeds.SolverID) {
			st.SolverID = seeds.SolverID[i]
		}
		if i < len(seeds.Color) {
			st.Color = seeds.Color[i]
		}
		m.Seeds[i] = st
	}
	return m
}

// send queues b for the session, evicting the oldest queued message when the
// observer is behind.
func (s *Server) send(ss *session, b []byte) {
	select {
	case ss.out <- b:
		return
	default:
	}
	select {
	case <-ss.out:
		s.dropped.Add(1)
	default:
	}
	select {
	case ss.out <- b:
	default:
		s.dropped.Add(1)
	}
}

func (ss *session) wants(info observerproto.InstanceInfo) (bool, int) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if len(ss.filter) > 0 && !ss.filter[info.ID] && !ss.filter[info.Name] {
		return false, ss.maxSeeds
	}
	return true, ss.maxSeeds
}

func (ss *session) apply(sub observerproto.SubscribeMsg) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.filter = map[string]bool{}
	for _, name := range sub.Instances {
		if name = strings.TrimSpace(name); name != "" {
			ss.filter[name] = true
		}
	}
	ss.maxSeeds = sub.MaxSeeds
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxSeeds <= 0 {
		sub.MaxSeeds = defaultMaxSeeds
	}
	if sub.MaxSeeds > maxMaxSeeds {
		sub.MaxSeeds = maxMaxSeeds
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		ss := &session{
			id:  fmt.Sprintf("O%d", s.nextID.Add(1)),
			out: make(chan []byte, sessionQueue),
		}
		ss.apply(sub)

		welcome, _ := json.Marshal(observerproto.WelcomeMsg{
			Type:            observerproto.TypeWelcome,
			ProtocolVersion: observerproto.Version,
			SessionID:       ss.id,
			Instances:       s.Instances(),
		})
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			return
		}

		s.mu.Lock()
		s.sessions[ss.id] = ss
		s.mu.Unlock()
		s.log.Printf("observer %s subscribed from %s", ss.id, r.RemoteAddr)
		defer func() {
			s.mu.Lock()
			delete(s.sessions, ss.id)
			s.mu.Unlock()
			s.log.Printf("observer %s left", ss.id)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-ss.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			normalizeSubscribe(&sub)
			ss.apply(sub)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
