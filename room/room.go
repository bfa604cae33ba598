package room

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/bot"
	"github.com/YvesLemasson/curve-io-sub000/game"
	"github.com/YvesLemasson/curve-io-sub000/models"
	"github.com/YvesLemasson/curve-io-sub000/protocol"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

var palette = []string{
	"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#00FFFF", "#FF00FF",
	"#FF8800", "#8800FF", "#88FF00", "#0088FF", "#FF0088", "#FFFFFF",
}

// Room is one match: an engine ticking on its own goroutine, the
// synchronizer feeding its members, and the bots playing in it.
type Room struct {
	ID string

	opts   Options
	engine *game.Engine
	syncer *protocol.Synchronizer
	ctx    context.Context
	cancel context.CancelFunc
	rng    *rand.Rand // bot seeds; guarded by mu

	mu        sync.Mutex
	members   map[string]*Member
	roster    []protocol.RosterEntry
	bots      int
	status    game.Status
	round     int
	closed    bool
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time
}

func newRoom(parent context.Context, id string, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		ID:        id,
		opts:      opts,
		engine:    game.NewEngine(id, opts.Engine),
		syncer:    protocol.NewSynchronizer(opts.ResyncInterval),
		ctx:       ctx,
		cancel:    cancel,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		members:   make(map[string]*Member),
		status:    game.StatusWaiting,
		createdAt: time.Now(),
	}
	r.engine.OnPublish(r.publish)
	r.engine.OnGameEnd(r.finish)
	go r.engine.Run(ctx)
	return r
}

// Status is the room's status as of the latest tick.
func (r *Room) Status() game.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Seats counts humans and bots.
func (r *Room) Seats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roster)
}

func (r *Room) Humans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Active reports whether the tick loop is still running.
func (r *Room) Active() bool {
	select {
	case <-r.engine.Done():
		return false
	default:
		return true
	}
}

// View is the latest published snapshot.
func (r *Room) View() *game.Snapshot {
	return r.engine.View()
}

func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		ID:        r.ID,
		Status:    r.status,
		Round:     r.round,
		Rounds:    r.opts.Engine.TotalRounds,
		Humans:    len(r.members),
		Capacity:  r.opts.Capacity,
		Players:   append([]protocol.RosterEntry(nil), r.roster...),
		CreatedAt: r.createdAt,
		Age:       age(time.Since(r.createdAt)),
	}
}

// Join seats a human. The color is honored when free, otherwise a free one
// is picked. The member gets a welcome and then a full snapshot on the next
// tick.
func (r *Room) Join(ctx context.Context, name, color string, conn Conn, codec protocol.Codec) (*Member, error) {
	id := uuid.New().String()
	if name == "" {
		name = "Player " + id[:4]
	}
	var assigned string
	err := r.engine.Call(ctx, func(e *game.Engine) error {
		if e.Status() != game.StatusWaiting {
			return ErrRoomActive
		}
		if e.ActivePlayers() >= r.opts.Capacity {
			return ErrRoomFull
		}
		assigned = pickColor(color, e.UsedColors())
		return e.AddPlayer(models.NewPlayer(id, name, assigned))
	})
	if errors.Is(err, game.ErrEngineStopped) {
		err = ErrRoomActive
	}
	if err != nil {
		return nil, err
	}

	m := &Member{ID: id, Name: name, Color: assigned, Conn: conn, Codec: codec, fresh: true}
	r.send(m, protocol.MsgWelcome, protocol.Welcome{
		PlayerID: id,
		RoomID:   r.ID,
		Color:    assigned,
		TickHz:   r.opts.Engine.TickRate,
		Codec:    codec.Name(),
	})

	r.mu.Lock()
	r.members[id] = m
	r.roster = append(r.roster, protocol.RosterEntry{ID: id, Name: name, Color: assigned})
	r.mu.Unlock()

	log.Printf("room %s: %s joined as %s (%s)", r.ID, name, id, assigned)
	r.broadcastRoster()
	return m, nil
}

// Leave removes a human. It returns how many humans remain.
func (r *Room) Leave(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	if _, ok := r.members[id]; !ok {
		r.mu.Unlock()
		return 0, ErrNotMember
	}
	delete(r.members, id)
	r.dropRoster(id)
	left := len(r.members)
	r.mu.Unlock()

	err := r.engine.Call(ctx, func(e *game.Engine) error {
		return e.RemovePlayer(id)
	})
	if err != nil && !errors.Is(err, game.ErrEngineStopped) {
		return left, err
	}
	log.Printf("room %s: player %s left, %d humans remain", r.ID, id, left)
	r.broadcastRoster()
	return left, nil
}

// Start begins the match, first filling empty seats with bots when enabled.
func (r *Room) Start(ctx context.Context) error {
	var (
		added []*models.Player
		bots  int
	)
	err := r.engine.Call(ctx, func(e *game.Engine) error {
		if e.Status() != game.StatusWaiting {
			return game.ErrAlreadyStarted
		}
		if r.opts.BotFill {
			need := r.opts.Engine.MinPlayers
			for e.ActivePlayers() < need && e.ActivePlayers() < r.opts.Capacity {
				p := r.newBot(e, r.opts.BotDifficulty)
				if err := e.AddPlayer(p); err != nil {
					return fmt.Errorf("fill bot: %w", err)
				}
				added = append(added, p)
			}
		}
		bots = e.ActiveBots()
		return e.Start()
	})
	for _, p := range added {
		r.runBot(p, bot.Difficulty(p.Bot))
	}
	if errors.Is(err, game.ErrEngineStopped) {
		err = game.ErrAlreadyStarted
	}
	if err != nil {
		if len(added) > 0 {
			r.broadcastRoster()
		}
		return err
	}

	r.mu.Lock()
	r.status = game.StatusPlaying
	r.startedAt = time.Now()
	r.mu.Unlock()
	log.Printf("room %s: match started with %d seats, %d of them bots (%d added)", r.ID, r.Seats(), bots, len(added))
	r.broadcastRoster()
	return nil
}

// AddBot seats a bot while the room is waiting.
func (r *Room) AddBot(ctx context.Context, d bot.Difficulty) (string, error) {
	var p *models.Player
	err := r.engine.Call(ctx, func(e *game.Engine) error {
		if e.Status() != game.StatusWaiting {
			return ErrRoomActive
		}
		if e.ActivePlayers() >= r.opts.Capacity {
			return ErrRoomFull
		}
		p = r.newBot(e, d)
		return e.AddPlayer(p)
	})
	if errors.Is(err, game.ErrEngineStopped) {
		err = ErrRoomActive
	}
	if err != nil {
		return "", err
	}
	r.runBot(p, d)
	r.broadcastRoster()
	return p.ID, nil
}

// newBot builds a bot player. It runs inside an engine call.
func (r *Room) newBot(e *game.Engine, d bot.Difficulty) *models.Player {
	r.mu.Lock()
	r.bots++
	n := r.bots
	r.mu.Unlock()
	id := "bot-" + uuid.New().String()
	p := models.NewPlayer(id, fmt.Sprintf("Bot %d", n), pickColor("", e.UsedColors()))
	p.Bot = string(d)
	return p
}

func (r *Room) runBot(p *models.Player, d bot.Difficulty) {
	r.mu.Lock()
	seed := r.rng.Int63()
	r.roster = append(r.roster, protocol.RosterEntry{ID: p.ID, Name: p.Name, Color: p.Color, Bot: p.Bot})
	r.mu.Unlock()
	c := bot.NewController(p.ID, d, r.opts.Engine, r.engine, seed)
	go c.Run(r.ctx)
}

// Advance asks for the next round. It reports false when the room is not
// between rounds or a countdown is already running.
func (r *Room) Advance(ctx context.Context) (bool, error) {
	ok := false
	err := r.engine.Call(ctx, func(e *game.Engine) error {
		ok = e.AdvanceRound()
		return nil
	})
	return ok, err
}

// SetColor changes a member's color between rounds.
func (r *Room) SetColor(ctx context.Context, id, color string) error {
	r.mu.Lock()
	_, ok := r.members[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotMember
	}
	err := r.engine.Call(ctx, func(e *game.Engine) error {
		return e.SetColor(id, color)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	if m, ok := r.members[id]; ok {
		m.Color = color
	}
	for i := range r.roster {
		if r.roster[i].ID == id {
			r.roster[i].Color = color
		}
	}
	r.mu.Unlock()
	r.broadcastRoster()
	return nil
}

// Input queues a client input. Unknown directions are dropped.
func (r *Room) Input(id string, in protocol.Input) bool {
	dir, ok := game.ParseDirection(in.Direction)
	if !ok {
		return false
	}
	return r.engine.Enqueue(game.Input{PlayerID: id, Direction: dir, Boost: in.Boost, Timestamp: time.Now()})
}

// publish runs on the tick goroutine after every step.
func (r *Room) publish(snap *game.Snapshot) {
	f := r.syncer.Publish(snap)

	r.mu.Lock()
	if !r.closed {
		r.status = snap.Status
		r.round = snap.Round
	}
	members := make([]*Member, 0, len(r.members))
	fresh := make([]bool, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
		fresh = append(fresh, m.fresh)
		m.fresh = false
	}
	r.mu.Unlock()
	if len(members) == 0 {
		return
	}

	type key struct {
		codec string
		full  bool
	}
	encoded := make(map[key][]byte, 2)
	var late protocol.Frame
	for i, m := range members {
		frame := f
		if fresh[i] && f.Kind != protocol.FrameFull {
			if late.Full == nil {
				late = protocol.FullFrame(snap, time.Now())
			}
			frame = late
		}
		k := key{codec: m.Codec.Name(), full: frame.Kind == protocol.FrameFull}
		b, ok := encoded[k]
		if !ok {
			var err error
			b, err = protocol.Encode(m.Codec, protocol.MsgState, frame)
			if err != nil {
				log.Printf("room %s: encode %s frame: %v", r.ID, frame.Kind, err)
				continue
			}
			encoded[k] = b
			if k.full && f.Kind == protocol.FrameFull && snap.Tick > 1 {
				log.Printf("room %s: full snapshot at tick %d is %s (%s)", r.ID, snap.Tick, humanize.Bytes(uint64(len(b))), k.codec)
			}
		}
		if err := m.Conn.Send(b); err != nil {
			log.Printf("room %s: send to %s: %v", r.ID, m.ID, err)
		}
	}
}

// finish runs on the tick goroutine when the match ends. The loop is
// stopped right after the final snapshot goes out.
func (r *Room) finish(res game.GameResult) {
	r.mu.Lock()
	r.endedAt = res.EndedAt
	r.mu.Unlock()

	r.broadcast(protocol.MsgGameEnd, protocol.GameEnd{Scores: res.Scores, Winner: res.Winner, Tied: res.Tied})
	if r.opts.Results != nil {
		go func() {
			if err := r.opts.Results.Record(res); err != nil {
				log.Printf("room %s: record result: %v", r.ID, err)
			}
		}()
	}
	r.cancel()
}

// abandon stops a started room that no human is left in.
func (r *Room) abandon() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.status = game.StatusEnded
	if r.endedAt.IsZero() {
		r.endedAt = time.Now()
	}
	r.mu.Unlock()
	r.cancel()
	<-r.engine.Done()
	log.Printf("room %s: abandoned", r.ID)
}

// close stops the loop and disconnects every member.
func (r *Room) close() {
	r.mu.Lock()
	r.closed = true
	members := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.members = make(map[string]*Member)
	r.mu.Unlock()

	r.cancel()
	<-r.engine.Done()
	for _, m := range members {
		if err := m.Conn.Close(); err != nil {
			log.Printf("room %s: close %s: %v", r.ID, m.ID, err)
		}
	}
}

// expired reports whether the room ended at least grace ago.
func (r *Room) expired(now time.Time, grace time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.endedAt.IsZero() && now.Sub(r.endedAt) >= grace
}

func (r *Room) broadcastRoster() {
	r.mu.Lock()
	msg := protocol.Roster{
		RoomID:  r.ID,
		Status:  string(r.status),
		Players: append([]protocol.RosterEntry(nil), r.roster...),
	}
	r.mu.Unlock()
	r.broadcast(protocol.MsgRoster, msg)
}

func (r *Room) broadcast(t string, payload any) {
	r.mu.Lock()
	members := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.Unlock()
	for _, m := range members {
		r.send(m, t, payload)
	}
}

func (r *Room) send(m *Member, t string, payload any) {
	b, err := protocol.Encode(m.Codec, t, payload)
	if err != nil {
		log.Printf("room %s: encode %s: %v", r.ID, t, err)
		return
	}
	if err := m.Conn.Send(b); err != nil {
		log.Printf("room %s: send %s to %s: %v", r.ID, t, m.ID, err)
	}
}

// dropRoster removes id from the roster; mu must be held.
func (r *Room) dropRoster(id string) {
	for i, e := range r.roster {
		if e.ID == id {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			return
		}
	}
}

// pickColor keeps the preferred color when nobody uses it, otherwise takes
// the first free palette color, and falls back to a random one.
func pickColor(preferred string, used []string) string {
	taken := func(c string) bool {
		for _, u := range used {
			if models.SameColor(u, c) {
				return true
			}
		}
		return false
	}
	if preferred != "" && !taken(preferred) {
		return preferred
	}
	for _, c := range palette {
		if !taken(c) {
			return c
		}
	}
	for {
		c := fmt.Sprintf("#%06x", rand.Intn(0xFFFFFF))
		if !taken(c) {
			return c
		}
	}
}
