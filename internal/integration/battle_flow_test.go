package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arrakis-sim/dune-server-go/internal/agent"
	"github.com/arrakis-sim/dune-server-go/internal/config"
	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/arrakis-sim/dune-server-go/internal/game/battle"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/arrakis-sim/dune-server-go/internal/server"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const twoBattles = `
turn: 3
storm: 17
factions:
  - faction: EMPEROR
    seat: 1
    spice: 10
    forces:
      - {territory: the-great-flat, sector: 14, regular: 10}
  - faction: FREMEN
    seat: 5
    spice: 10
    forces:
      - {territory: the-great-flat, sector: 14, regular: 7}
  - faction: ATREIDES
    seat: 9
    spice: 5
    forces:
      - {territory: arrakeen, sector: 9, regular: 4}
  - faction: HARKONNEN
    seat: 12
    spice: 5
    forces:
      - {territory: arrakeen, sector: 9, regular: 3}
`

type stack struct {
	client  *server.Client
	engine  *game.BattleEngine
	hub     *server.Hub
	wsURL   string
	replays string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	replays := t.TempDir()
	engine := game.NewBattleEngine(logger,
		battle.NewHandler(battle.DefaultOptions(), logger),
		game.WithReplayRecorder(game.NewReplayRecorder(logger, replays)),
	)

	hub := server.NewHub(config.WebSocketConfig{WriteTimeout: time.Second, PingInterval: time.Minute}, logger)
	go hub.Run(ctx)
	engine.SetNotificationHandler(hub.Notify)
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(ts.Close)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
		server.RecoveryInterceptor(logger),
		server.LoggingInterceptor(logger),
	)))
	server.RegisterBattleService(srv, server.NewBattleServer(engine, nil, 4, logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial battle service: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &stack{
		client:  server.NewClient(conn),
		engine:  engine,
		hub:     hub,
		wsURL:   "ws" + strings.TrimPrefix(ts.URL, "http"),
		replays: replays,
	}
}

// subscribe collects notifications until the phase completes.
func (s *stack) subscribe(t *testing.T) <-chan []game.Notification {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	out := make(chan []game.Notification, 1)
	go func() {
		var got []game.Notification
		defer func() { out <- got }()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var n game.Notification
			if err := json.Unmarshal(data, &n); err != nil {
				return
			}
			got = append(got, n)
			if n.Type == game.NotificationPhaseComplete {
				return
			}
		}
	}()
	return out
}

func battlePlan(f state.Faction, leader string, forces int) rules.Response {
	return rules.Response{
		ActionType: rules.ActionSubmitBattlePlan,
		Data:       map[string]any{"leader_id": state.LeaderID(f, leader), "forces": forces},
	}
}

func TestBattlePhaseOverGRPC(t *testing.T) {
	s := newStack(t)
	notes := s.subscribe(t)
	ctx := context.Background()

	view, err := s.client.StartBattle(ctx, twoBattles)
	if err != nil {
		t.Fatalf("Failed to start battle: %v", err)
	}
	if got := len(view.Queue) + 1; got != 2 {
		t.Fatalf("Expected 2 battles, got %d", got)
	}

	roster := agent.NewRoster(agent.PassProvider{}).
		Assign(state.FactionEmperor, agent.NewScriptedProvider().On(rules.RequestCreateBattlePlan, battlePlan(state.FactionEmperor, "Caid", 5))).
		Assign(state.FactionFremen, agent.NewScriptedProvider().On(rules.RequestCreateBattlePlan, battlePlan(state.FactionFremen, "Jamis", 3)))

	end, err := agent.NewDriver(s.client, roster, zap.NewNop()).Run(ctx, view)
	if err != nil {
		t.Fatalf("Driver failed: %v", err)
	}
	if !end.Complete || end.Resolved != 2 {
		t.Fatalf("Expected complete phase with 2 battles resolved, got complete=%v resolved=%d", end.Complete, end.Resolved)
	}

	stats, err := s.client.GetStats(ctx, end.SessionID)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.ForcesLost[state.FactionEmperor] != 5 || stats.ForcesLost[state.FactionFremen] != 7 {
		t.Errorf("Unexpected great flat losses: %v", stats.ForcesLost)
	}

	events, err := s.client.GetEvents(ctx, end.SessionID, 0)
	if err != nil {
		t.Fatalf("Failed to get events: %v", err)
	}

	g, err := s.client.Finish(ctx, end.SessionID)
	if err != nil {
		t.Fatalf("Failed to finish battle: %v", err)
	}
	if g.Turn != 3 {
		t.Errorf("Expected turn 3 after finish, got %d", g.Turn)
	}

	var got []game.Notification
	select {
	case got = <-notes:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for notifications")
	}
	streamed := 0
	for _, n := range got {
		if n.SessionID != end.SessionID {
			t.Errorf("Notification for unexpected session %s", n.SessionID)
		}
		if n.Type == game.NotificationEvent {
			streamed++
		}
	}
	if streamed != len(events) {
		t.Errorf("Expected %d streamed events, got %d", len(events), streamed)
	}
	if len(got) == 0 || got[len(got)-1].Type != game.NotificationPhaseComplete {
		t.Error("Expected the stream to end with phase completion")
	}

	replay, err := game.LoadReplayFromFile(s.replays, end.SessionID)
	if err != nil {
		t.Fatalf("Failed to load replay: %v", err)
	}
	if replay.Len() != end.Sequence {
		t.Errorf("Expected %d replay snapshots, got %d", end.Sequence, replay.Len())
	}
	if err := replay.Verify(); err != nil {
		t.Errorf("Replay failed verification: %v", err)
	}
	if last := replay.Last(); last == nil || !last.State.Complete() {
		t.Error("Expected the last replay snapshot to be complete")
	}
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	type result struct {
		view *game.SessionView
		err  error
	}
	results := make(chan result, 3)
	for i := 0; i < 3; i++ {
		go func() {
			view, err := s.client.StartBattle(ctx, twoBattles)
			if err == nil {
				view, err = agent.NewDriver(s.client, nil, zap.NewNop()).Run(ctx, view)
			}
			results <- result{view, err}
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("Session failed: %v", r.err)
		}
		if !r.view.Complete {
			t.Errorf("Session %s did not complete", r.view.SessionID)
		}
		seen[r.view.SessionID] = true
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 distinct sessions, got %d", len(seen))
	}
	if n := len(s.engine.Sessions()); n != 3 {
		t.Errorf("Expected 3 loaded sessions, got %d", n)
	}
}
