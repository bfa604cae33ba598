package protocol

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/collision"
	"github.com/YvesLemasson/curve-io-sub000/game"
	"github.com/YvesLemasson/curve-io-sub000/models"
)

func TestEncodeDecodeEnvelope(t *testing.T) {
	for _, c := range []Codec{JSON, Msgpack} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := Encode(c, MsgInput, Input{Direction: "left", Boost: true, Timestamp: 42})
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			env, err := DecodeEnvelope(c, b)
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.T != MsgInput {
				t.Fatalf("type = %q, want %q", env.T, MsgInput)
			}
			in, err := DecodePayload[Input](c, env)
			if err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if in.Direction != "left" || !in.Boost || in.Timestamp != 42 {
				t.Fatalf("payload = %+v", in)
			}
		})
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	if _, err := Encode(JSON, "", Input{}); err == nil {
		t.Fatal("expected error for empty type")
	}
	if _, err := Encode(JSON, MsgInput, nil); err == nil {
		t.Fatal("expected error for nil payload")
	}
	if _, err := DecodeEnvelope(JSON, nil); err == nil {
		t.Fatal("expected error for empty message")
	}
	if _, err := DecodePayload[Input](JSON, Envelope{T: MsgInput}); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestJSONEnvelopeShape(t *testing.T) {
	b, err := Encode(JSON, MsgColor, ColorRequest{Color: "#00ff00"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"t":"color","p":{"color":"#00ff00"}}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{"": JSON, "json": JSON, "msgpack": Msgpack} {
		c, err := CodecByName(name)
		if err != nil || c != want {
			t.Fatalf("CodecByName(%q) = %v, %v", name, c, err)
		}
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func snap(tick uint64, status game.Status, players ...game.PlayerSnapshot) *game.Snapshot {
	return &game.Snapshot{Tick: tick, Status: status, Round: 1, TotalRounds: 3, Width: 100, Height: 100, Players: players}
}

func trailOf(xs ...float64) collision.Trail {
	t := make(collision.Trail, 0, len(xs))
	for _, x := range xs {
		if x < 0 {
			t = append(t, collision.GapMarker)
			continue
		}
		t = append(t, collision.Entry{X: x, Y: x})
	}
	return t
}

func TestFirstFrameIsFull(t *testing.T) {
	s := NewSynchronizer(10)
	f := s.Publish(snap(1, game.StatusPlaying))
	if f.Kind != FrameFull || f.Full == nil {
		t.Fatalf("first frame kind = %s", f.Kind)
	}
	f = s.Publish(snap(2, game.StatusPlaying))
	if f.Kind != FrameDelta || f.Delta == nil {
		t.Fatalf("second frame kind = %s", f.Kind)
	}
}

func TestResyncCadence(t *testing.T) {
	const interval = 5
	s := NewSynchronizer(interval)
	s.Publish(snap(0, game.StatusPlaying))
	fulls := 0
	for i := 1; i <= 3*(interval+1); i++ {
		if s.Publish(snap(uint64(i), game.StatusPlaying)).Kind == FrameFull {
			fulls++
		}
	}
	if fulls != 3 {
		t.Fatalf("got %d full frames over %d ticks, want 3", fulls, 3*(interval+1))
	}
	f, d := s.Counts()
	if f != 4 || d != 3*interval {
		t.Fatalf("counts = %d full, %d delta", f, d)
	}
}

func TestStatusChangeForcesFull(t *testing.T) {
	s := NewSynchronizer(100)
	s.Publish(snap(1, game.StatusPlaying))
	s.Publish(snap(2, game.StatusPlaying))
	if f := s.Publish(snap(3, game.StatusRoundEnded)); f.Kind != FrameFull {
		t.Fatalf("status change produced %s frame", f.Kind)
	}
}

func TestDeltaOmitsUnchanged(t *testing.T) {
	p := game.PlayerSnapshot{ID: "a", X: 1, Y: 2, Alive: true, Trail: trailOf(1, 2)}
	d := Diff(snap(1, game.StatusPlaying, p), snap(2, game.StatusPlaying, p), DefaultTailWindow)
	if len(d.Players) != 0 || len(d.Removed) != 0 || d.Status != nil || d.Round != nil || d.DeathLog != nil {
		t.Fatalf("expected empty delta, got %+v", d)
	}

	moved := p
	moved.X = 3
	moved.Trail = trailOf(1, 2, 3)
	d = Diff(snap(1, game.StatusPlaying, p), snap(2, game.StatusPlaying, moved), DefaultTailWindow)
	if len(d.Players) != 1 {
		t.Fatalf("expected one player delta, got %d", len(d.Players))
	}
	pd := d.Players[0]
	if pd.X == nil || *pd.X != 3 || pd.Y != nil || pd.Alive != nil {
		t.Fatalf("unexpected fields in %+v", pd)
	}
	if pd.TrailReplace || pd.TrailLen == nil || *pd.TrailLen != 3 || len(pd.Trail) != 1 {
		t.Fatalf("expected a one-entry append, got %+v", pd)
	}
}

func TestMirrorRejectsDeltaWithoutBase(t *testing.T) {
	var m Mirror
	err := m.Apply(Frame{Kind: FrameDelta, Tick: 1, Delta: &Delta{}})
	if !errors.Is(err, ErrNoBase) {
		t.Fatalf("got %v, want ErrNoBase", err)
	}
	if m.State() != nil {
		t.Fatal("state should still be empty")
	}
}

func TestMirrorTrailShapes(t *testing.T) {
	base := game.PlayerSnapshot{ID: "a", Alive: true, Trail: trailOf(1, 2, 3, 4, 5)}
	cases := []struct {
		name       string
		trail      collision.Trail
		trailStart int
	}{
		{"append", trailOf(1, 2, 3, 4, 5, 6, 7), 0},
		{"gap marker", trailOf(1, 2, 3, 4, 5, -1, 7), 0},
		{"tail rewritten", trailOf(1, 2, 3, 4, 9), 0},
		{"trimmed front", trailOf(3, 4, 5, 6), 2},
		{"trimmed past old end", trailOf(8, 9), 7},
		{"reset", trailOf(20), 0},
		{"emptied", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m Mirror
			s := NewSynchronizer(100)
			prev := snap(1, game.StatusPlaying, base)
			if err := m.Apply(s.Publish(prev)); err != nil {
				t.Fatal(err)
			}
			next := base
			next.Trail = tc.trail
			next.TrailStart = tc.trailStart
			cur := snap(2, game.StatusPlaying, next)
			f := s.Publish(cur)
			if f.Kind != FrameDelta {
				t.Fatalf("expected delta frame, got %s", f.Kind)
			}
			if err := m.Apply(f); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if !m.State().Equal(cur) {
				t.Fatalf("mirror diverged: got %+v, want %+v", m.State().Players, cur.Players)
			}
		})
	}
}

func TestMirrorJoinAndRemove(t *testing.T) {
	var m Mirror
	s := NewSynchronizer(100)
	a := game.PlayerSnapshot{ID: "a", Name: "Ann", Color: "#f00", Trail: trailOf(1)}
	c := game.PlayerSnapshot{ID: "c", Name: "Cy", Color: "#00f", Trail: trailOf(3)}
	if err := m.Apply(s.Publish(snap(1, game.StatusPlaying, a, c))); err != nil {
		t.Fatal(err)
	}

	b := game.PlayerSnapshot{ID: "b", Name: "Bo", Color: "#0f0", Bot: "hard", Trail: trailOf(2)}
	cur := snap(2, game.StatusPlaying, b, c)
	f := s.Publish(cur)
	if len(f.Delta.Removed) != 1 || f.Delta.Removed[0] != "a" {
		t.Fatalf("removed = %v", f.Delta.Removed)
	}
	if err := m.Apply(f); err != nil {
		t.Fatal(err)
	}
	if !m.State().Equal(cur) {
		t.Fatalf("mirror diverged: %+v", m.State().Players)
	}
}

func TestMirrorDetectsMismatch(t *testing.T) {
	var m Mirror
	if err := m.Apply(FullFrame(snap(1, game.StatusPlaying, game.PlayerSnapshot{ID: "a", Trail: trailOf(1, 2)}), time.Time{})); err != nil {
		t.Fatal(err)
	}
	bad := Frame{Kind: FrameDelta, Tick: 2, Delta: &Delta{Players: []PlayerDelta{{
		ID:       "a",
		Trail:    trailOf(3),
		TrailLen: ptr(10),
	}}}}
	if err := m.Apply(bad); !errors.Is(err, ErrTrailMismatch) {
		t.Fatalf("got %v, want ErrTrailMismatch", err)
	}
	// a failed frame leaves the previous state untouched
	if got := m.State(); got.Tick != 1 || len(got.Players[0].Trail) != 2 {
		t.Fatalf("state changed after failed apply: %+v", got)
	}
}

// TestStreamOverEngine drives a real engine through several rounds with a
// trail cap and checks that the mirror, fed through the wire codec, rebuilds
// every published snapshot exactly.
func TestStreamOverEngine(t *testing.T) {
	for _, c := range []Codec{JSON, Msgpack} {
		t.Run(c.Name(), func(t *testing.T) {
			cfg := game.DefaultConfig()
			cfg.Seed = 7
			cfg.Width, cfg.Height = 400, 300
			cfg.TotalRounds = 50
			cfg.Countdown = 0
			cfg.MaxTrail = 40
			cfg.GapInterval = cfg.TickDuration() * 30
			cfg.GapDuration = cfg.TickDuration() * 6
			e := game.NewEngine("stream", cfg)
			ids := []string{"a", "b", "c"}
			for i, id := range ids {
				if err := e.AddPlayer(models.NewPlayer(id, id, fmt.Sprintf("#00000%d", i))); err != nil {
					t.Fatal(err)
				}
			}
			if err := e.Start(); err != nil {
				t.Fatal(err)
			}

			rng := rand.New(rand.NewSource(3))
			dirs := []game.Direction{game.DirNone, game.DirLeft, game.DirRight}
			syncer := NewSynchronizer(50)
			var m Mirror
			rounds := map[int]bool{}
			for i := 0; i < 900; i++ {
				if e.Status() == game.StatusRoundEnded {
					e.AdvanceRound()
				}
				for _, id := range ids {
					e.Enqueue(game.Input{PlayerID: id, Direction: dirs[rng.Intn(len(dirs))], Boost: rng.Intn(4) == 0})
				}
				s := e.Step()
				rounds[s.Round] = true

				b, err := Encode(c, MsgState, syncer.Publish(s))
				if err != nil {
					t.Fatalf("tick %d: encode: %v", s.Tick, err)
				}
				env, err := DecodeEnvelope(c, b)
				if err != nil {
					t.Fatalf("tick %d: envelope: %v", s.Tick, err)
				}
				f, err := DecodePayload[Frame](c, env)
				if err != nil {
					t.Fatalf("tick %d: payload: %v", s.Tick, err)
				}
				if err := m.Apply(f); err != nil {
					t.Fatalf("tick %d: apply: %v", s.Tick, err)
				}
				if !m.State().Equal(s) {
					t.Fatalf("tick %d (%s frame): mirror diverged\ngot  %+v\nwant %+v", s.Tick, f.Kind, m.State(), s)
				}
			}
			fulls, deltas := syncer.Counts()
			if fulls < 2 || deltas == 0 {
				t.Fatalf("expected a mix of frames, got %d full and %d delta", fulls, deltas)
			}
			if len(rounds) < 2 {
				t.Fatalf("expected several rounds, saw %d", len(rounds))
			}
		})
	}
}
