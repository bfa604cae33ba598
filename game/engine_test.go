package game

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/collision"
	"github.com/YvesLemasson/curve-io-sub000/models"
)

var colors = []string{"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#00FFFF", "#FF00FF"}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.TotalRounds = 2
	cfg.Countdown = 0
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, ids ...string) *Engine {
	t.Helper()
	e := NewEngine("test", cfg)
	for i, id := range ids {
		if err := e.AddPlayer(models.NewPlayer(id, "name-"+id, colors[i%len(colors)])); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	return e
}

func startTestEngine(t *testing.T, cfg Config, ids ...string) *Engine {
	t.Helper()
	e := newTestEngine(t, cfg, ids...)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return e
}

// place moves an already spawned player, restarting its trail at pos.
func place(e *Engine, id string, x, y, heading float64) *models.Player {
	p := e.player(id)
	p.Spawn(collision.Point{X: x, Y: y}, heading, e.tuning)
	return p
}

func TestRoundPointsFourPlayers(t *testing.T) {
	pts := RoundPoints([]string{"P2", "P4", "P1"}, "P3")
	want := map[string]int{"P2": 0, "P4": 1, "P1": 2, "P3": 3}
	for id, w := range want {
		if pts[id] != w {
			t.Fatalf("points[%s] = %d, want %d (all: %v)", id, pts[id], w, pts)
		}
	}
}

func TestRoundPointsWithoutSurvivor(t *testing.T) {
	pts := RoundPoints([]string{"a", "b"}, "")
	if pts["a"] != 0 || pts["b"] != 1 || len(pts) != 2 {
		t.Fatalf("points = %v", pts)
	}
}

func TestWinnerPolicy(t *testing.T) {
	if w, tied := Winner(map[string]int{"a": 3, "b": 5, "c": 1}); w != "b" || tied != nil {
		t.Fatalf("winner = %q tied=%v, want b", w, tied)
	}
	w, tied := Winner(map[string]int{"c": 5, "a": 5, "b": 1})
	if w != "" {
		t.Fatalf("tie produced winner %q", w)
	}
	if !slices.Equal(tied, []string{"a", "c"}) {
		t.Fatalf("tied = %v, want [a c]", tied)
	}
}

func TestStartValidation(t *testing.T) {
	e := newTestEngine(t, testConfig(), "a")
	if err := e.Start(); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("start with one player: %v, want ErrNotEnoughPlayers", err)
	}
	if err := e.AddPlayer(models.NewPlayer("b", "b", "#123456")); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start: %v, want ErrAlreadyStarted", err)
	}
	if err := e.AddPlayer(models.NewPlayer("c", "c", "#654321")); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("late join: %v, want ErrAlreadyStarted", err)
	}
	if e.Status() != StatusPlaying || e.Round() != 1 {
		t.Fatalf("status=%s round=%d", e.Status(), e.Round())
	}
}

func TestFourPlayerRoundScoring(t *testing.T) {
	e := startTestEngine(t, testConfig(), "p1", "p2", "p3", "p4")
	place(e, "p2", 1199, 100, 0)
	place(e, "p4", 1190, 300, 0)
	place(e, "p1", 1180, 500, 0)
	place(e, "p3", 600, 700, math.Pi)

	for i := 0; i < 10; i++ {
		e.Step()
	}
	if e.Status() != StatusRoundEnded {
		t.Fatalf("status = %s, want round-ended", e.Status())
	}
	if want := []string{"p2", "p4", "p1", "p3"}; !slices.Equal(e.DeathLog(), want) {
		t.Fatalf("death log = %v, want %v", e.DeathLog(), want)
	}
	want := map[string]int{"p2": 0, "p4": 1, "p1": 2, "p3": 3}
	for id, w := range want {
		if got := e.Scores()[id]; got != w {
			t.Fatalf("score[%s] = %d, want %d", id, got, w)
		}
	}
}

func TestSameTickEliminationsOrderedByID(t *testing.T) {
	e := startTestEngine(t, testConfig(), "b", "a")
	place(e, "b", 1199, 200, 0)
	place(e, "a", 1199, 100, 0)
	e.Step()

	if want := []string{"a", "b"}; !slices.Equal(e.DeathLog(), want) {
		t.Fatalf("death log = %v, want %v", e.DeathLog(), want)
	}
	if s := e.Scores(); s["a"] != 0 || s["b"] != 1 {
		t.Fatalf("scores = %v", s)
	}
}

func TestAdvanceRound(t *testing.T) {
	cfg := testConfig()
	cfg.Countdown = 100 * time.Millisecond
	e := startTestEngine(t, cfg, "a", "b")

	if e.AdvanceRound() {
		t.Fatalf("advance accepted while playing")
	}
	place(e, "a", 1199, 100, 0)
	place(e, "b", 1199, 200, 0)
	e.Step()
	if e.Status() != StatusRoundEnded {
		t.Fatalf("status = %s, want round-ended", e.Status())
	}

	for i := 0; i < 5; i++ {
		if s := e.Step(); s.Status != StatusRoundEnded {
			t.Fatalf("round restarted without an advance signal")
		}
	}
	if !e.AdvanceRound() {
		t.Fatalf("advance rejected in round-ended")
	}
	if e.AdvanceRound() {
		t.Fatalf("second advance accepted during countdown")
	}
	ticks := cfg.Ticks(cfg.Countdown)
	for i := 0; i < ticks-1; i++ {
		if s := e.Step(); s.Status != StatusRoundEnded || s.CountdownMs <= 0 {
			t.Fatalf("tick %d: status=%s countdown=%d", i, s.Status, s.CountdownMs)
		}
	}
	s := e.Step()
	if s.Status != StatusPlaying || s.Round != 2 {
		t.Fatalf("after countdown: status=%s round=%d", s.Status, s.Round)
	}
	if len(s.DeathLog) != 0 {
		t.Fatalf("death log not reset: %v", s.DeathLog)
	}
	for _, p := range s.Players {
		if !p.Alive || p.Trail.RealCount() != 1 {
			t.Fatalf("player %s not respawned: alive=%v trail=%v", p.ID, p.Alive, p.Trail)
		}
	}
}

func TestMatchEndsAndReportsResult(t *testing.T) {
	cfg := testConfig()
	cfg.TotalRounds = 1
	e := newTestEngine(t, cfg, "a", "b")
	var got *GameResult
	e.OnGameEnd(func(r GameResult) { got = &r })
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	place(e, "a", 1199, 100, 0)
	place(e, "b", 600, 450, 0)
	e.Step()

	if e.Status() != StatusEnded {
		t.Fatalf("status = %s, want ended", e.Status())
	}
	if got == nil {
		t.Fatalf("game end hook not called")
	}
	if got.Winner != "b" || got.Scores["b"] != 1 || got.Scores["a"] != 0 || got.RoomID != "test" {
		t.Fatalf("result = %+v", *got)
	}
	if e.AdvanceRound() {
		t.Fatalf("advance accepted after the match ended")
	}
	if s := e.Step(); s.Status != StatusEnded || s.Winner != "b" {
		t.Fatalf("ended snapshot = %s winner %q", s.Status, s.Winner)
	}
}

func TestGameEndFiresAfterFinalPublish(t *testing.T) {
	cfg := testConfig()
	cfg.TotalRounds = 1
	e := newTestEngine(t, cfg, "a", "b")
	var order []string
	e.OnPublish(func(s *Snapshot) {
		if s.Status == StatusEnded {
			order = append(order, "publish")
		}
	})
	e.OnGameEnd(func(r GameResult) {
		if v := e.View(); v == nil || v.Status != StatusEnded {
			t.Errorf("game end fired before the ended snapshot was stored")
		}
		order = append(order, "end")
	})
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	place(e, "a", 1199, 100, 0)
	place(e, "b", 600, 450, 0)
	e.Step()
	e.Step()

	if len(order) != 3 || order[0] != "publish" || order[1] != "end" || order[2] != "publish" {
		t.Fatalf("hook order = %v, want [publish end publish]", order)
	}
}

func TestGameEndAfterLeaveWaitsForTick(t *testing.T) {
	cfg := testConfig()
	cfg.TotalRounds = 1
	e := newTestEngine(t, cfg, "a", "b")
	ends := 0
	e.OnGameEnd(func(GameResult) { ends++ })
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.RemovePlayer("a"); err != nil {
		t.Fatal(err)
	}
	if e.Status() != StatusEnded || ends != 0 {
		t.Fatalf("after leave: status %s, %d game ends", e.Status(), ends)
	}
	if s := e.Step(); s.Status != StatusEnded {
		t.Fatalf("snapshot status = %s", s.Status)
	}
	e.Step()
	if ends != 1 {
		t.Fatalf("game end fired %d times, want 1", ends)
	}
}

func TestLatestInputWins(t *testing.T) {
	e := startTestEngine(t, testConfig(), "a", "b")
	p := place(e, "a", 600, 450, 0)
	place(e, "b", 300, 200, 0)

	e.Enqueue(Input{PlayerID: "a", Direction: DirLeft})
	e.Enqueue(Input{PlayerID: "a", Direction: DirLeft})
	e.Enqueue(Input{PlayerID: "a", Direction: DirRight})
	e.Step()
	if math.Abs(p.Heading-e.cfg.TurnRate) > 1e-12 {
		t.Fatalf("heading = %v, want one right turn %v", p.Heading, e.cfg.TurnRate)
	}
	// direction is held until replaced
	e.Step()
	if math.Abs(p.Heading-2*e.cfg.TurnRate) > 1e-12 {
		t.Fatalf("heading = %v, want two right turns", p.Heading)
	}
	e.Enqueue(Input{PlayerID: "a", Direction: DirNone})
	e.Step()
	if math.Abs(p.Heading-2*e.cfg.TurnRate) > 1e-12 {
		t.Fatalf("heading changed after release: %v", p.Heading)
	}
}

func TestMalformedInputDropped(t *testing.T) {
	e := startTestEngine(t, testConfig(), "a", "b")
	if e.Enqueue(Input{PlayerID: "a", Direction: Direction(9)}) {
		t.Fatalf("invalid direction accepted")
	}
	if e.Enqueue(Input{Direction: DirLeft}) {
		t.Fatalf("input without player accepted")
	}
	if !e.Enqueue(Input{PlayerID: "ghost", Direction: DirLeft}) {
		t.Fatalf("well-formed input rejected at the queue")
	}
	e.Step()
	if _, ok := e.latest["ghost"]; ok {
		t.Fatalf("unknown player input kept")
	}
	if _, ok := ParseDirection("up"); ok {
		t.Fatalf("unknown token parsed")
	}
}

func TestBoostBudgetThroughEngine(t *testing.T) {
	e := startTestEngine(t, testConfig(), "a", "b")
	p := place(e, "a", 100, 450, 0)
	place(e, "b", 100, 800, 0)
	budget := e.cfg.Ticks(e.cfg.BoostBudget)

	e.Enqueue(Input{PlayerID: "a", Boost: true})
	for i := 0; i < budget/2; i++ {
		e.Step()
	}
	e.Enqueue(Input{PlayerID: "a", Boost: false})
	s := e.Step()
	if p.Boost.Active || p.Boost.Remaining != budget-budget/2 {
		t.Fatalf("after release: active=%v remaining=%d", p.Boost.Active, p.Boost.Remaining)
	}
	if a, _ := s.Player("a"); a.Boosting {
		t.Fatalf("released player still boosting")
	}

	e.Enqueue(Input{PlayerID: "a", Boost: true})
	for i := 0; i < budget-budget/2; i++ {
		e.Step()
	}
	if p.Boost.Active || p.Boost.Remaining != 0 {
		t.Fatalf("after budget: active=%v remaining=%d", p.Boost.Active, p.Boost.Remaining)
	}
	x := p.Position.X
	s = e.Step()
	if got := p.Position.X - x; math.Abs(got-e.cfg.Speed) > 1e-9 {
		t.Fatalf("moved %v with an empty budget, want base speed %v", got, e.cfg.Speed)
	}
	if a, _ := s.Player("a"); a.BoostMs != 0 {
		t.Fatalf("boostMs = %d", a.BoostMs)
	}
}

func TestPassingThroughGapSurvives(t *testing.T) {
	e := startTestEngine(t, testConfig(), "a", "b", "c")
	wall := collision.Trail{
		collision.At(collision.Point{X: 310, Y: 10}),
		collision.At(collision.Point{X: 310, Y: 440}),
		collision.GapMarker,
		collision.At(collision.Point{X: 310, Y: 460}),
		collision.At(collision.Point{X: 310, Y: 890}),
		collision.GapMarker,
		collision.At(collision.Point{X: 900, Y: 100}),
	}
	b := place(e, "b", 900, 100, 0)
	b.Trail = wall
	b.Box = collision.NewObstacle("b", wall).Box

	a := place(e, "a", 300, 450, 0)
	c := place(e, "c", 300, 300, 0)
	for i := 0; i < 8; i++ {
		e.Step()
	}
	if !a.Alive {
		t.Fatalf("player crossing through the gap was eliminated")
	}
	if c.Alive {
		t.Fatalf("player crossing the drawn wall survived")
	}
	if !slices.Equal(e.DeathLog(), []string{"c"}) {
		t.Fatalf("death log = %v", e.DeathLog())
	}
}

func TestSetColor(t *testing.T) {
	e := newTestEngine(t, testConfig(), "a", "b")
	if err := e.SetColor("a", "#00ff00"); !errors.Is(err, ErrColorTaken) {
		t.Fatalf("taken color: %v", err)
	}
	if err := e.SetColor("a", "#abcdef"); err != nil {
		t.Fatalf("free color: %v", err)
	}
	if err := e.SetColor("zz", "#abcdef"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("unknown player: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.SetColor("a", "#111111"); !errors.Is(err, ErrRoundInProgress) {
		t.Fatalf("mid round: %v", err)
	}
}

func TestLeaveDuringPlayEliminates(t *testing.T) {
	e := startTestEngine(t, testConfig(), "a", "b", "c")
	if err := e.RemovePlayer("b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !slices.Equal(e.DeathLog(), []string{"b"}) {
		t.Fatalf("death log = %v", e.DeathLog())
	}
	if err := e.RemovePlayer("c"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if e.Status() != StatusRoundEnded {
		t.Fatalf("status = %s, want round-ended with one player left", e.Status())
	}
	if !e.AdvanceRound() {
		t.Fatalf("advance rejected")
	}
	if e.ActivePlayers() != 1 || len(e.players) != 1 {
		t.Fatalf("departed players not pruned: %d", len(e.players))
	}
}

func TestRemoveWhileWaiting(t *testing.T) {
	e := newTestEngine(t, testConfig(), "a", "b")
	if err := e.RemovePlayer("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if e.player("a") != nil {
		t.Fatalf("player still registered")
	}
	if err := e.RemovePlayer("a"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("second remove: %v", err)
	}
}

func TestSoloRoundRunsUntilDeath(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 1
	e := startTestEngine(t, cfg, "solo")
	place(e, "solo", 1190, 450, 0)
	for i := 0; i < 4; i++ {
		if s := e.Step(); s.Status != StatusPlaying {
			t.Fatalf("tick %d: solo round ended early", i)
		}
	}
	e.Step()
	if e.Status() != StatusRoundEnded {
		t.Fatalf("status = %s, want round-ended", e.Status())
	}
}

func TestRunCallAndStop(t *testing.T) {
	e := NewEngine("run", testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)

	for _, id := range []string{"a", "b"} {
		p := models.NewPlayer(id, id, "#"+id+id+id+id+id+id)
		if err := e.Call(ctx, func(e *Engine) error { return e.AddPlayer(p) }); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := e.Call(ctx, func(e *Engine) error { return e.Start() }); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if v := e.View(); v != nil && v.Status == StatusPlaying {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no playing snapshot published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatalf("engine did not stop")
	}
	err := e.Call(context.Background(), func(*Engine) error { return nil })
	if !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("call after stop: %v", err)
	}
}
