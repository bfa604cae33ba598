// Package room pools independent matches. Each room owns one engine and one
// synchronizer; the manager routes connections into rooms and purges
// finished ones.
package room

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/bot"
	"github.com/YvesLemasson/curve-io-sub000/game"
	"github.com/YvesLemasson/curve-io-sub000/protocol"
	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"
)

const (
	joinAttempts     = 3
	sweepConcurrency = 4
)

type Options struct {
	Engine         game.Config
	Capacity       int
	ResyncInterval int
	BotFill        bool
	BotDifficulty  bot.Difficulty
	// FinishedGrace keeps ended rooms listed this long before a sweep
	// purges them.
	FinishedGrace time.Duration
	Results       ResultSink
}

func DefaultOptions() Options {
	return Options{
		Engine:         game.DefaultConfig(),
		Capacity:       8,
		ResyncInterval: protocol.DefaultResyncInterval,
		BotFill:        true,
		BotDifficulty:  bot.Medium,
		FinishedGrace:  5 * time.Minute,
	}
}

// Manager owns every room. Lock order is Manager.mu before Room.mu.
type Manager struct {
	ctx  context.Context
	opts Options

	mu    sync.Mutex
	rooms map[string]*Room
	open  []*Room
}

func NewManager(ctx context.Context, opts Options) *Manager {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultOptions().Capacity
	}
	return &Manager{
		ctx:   ctx,
		opts:  opts,
		rooms: make(map[string]*Room),
	}
}

// FindOrCreateRoom returns the first open room with a free seat, or creates
// and registers a new one.
func (m *Manager) FindOrCreateRoom() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOrCreateLocked()
}

func (m *Manager) findOrCreateLocked() *Room {
	for _, r := range m.open {
		if r.Status() == game.StatusWaiting && r.Seats() < m.opts.Capacity {
			return r
		}
	}
	r := newRoom(m.ctx, uuid.New().String(), m.opts)
	m.rooms[r.ID] = r
	m.open = append(m.open, r)
	log.Printf("Created room %s (capacity %d)", r.ID, m.opts.Capacity)
	return r
}

// Join seats a human in any open room. A room can fill up or start between
// lookup and join, so a few attempts are made.
func (m *Manager) Join(ctx context.Context, name, color string, conn Conn, codec protocol.Codec) (*Room, *Member, error) {
	var err error
	for i := 0; i < joinAttempts; i++ {
		r := m.FindOrCreateRoom()
		var mem *Member
		mem, err = r.Join(ctx, name, color, conn, codec)
		if err == nil {
			return r, mem, nil
		}
		if !errors.Is(err, ErrRoomFull) && !errors.Is(err, ErrRoomActive) {
			return nil, nil, err
		}
		m.retire(r)
	}
	return nil, nil, fmt.Errorf("join: %w", err)
}

// JoinRoom seats a human in a specific room.
func (m *Manager) JoinRoom(ctx context.Context, roomID, name, color string, conn Conn, codec protocol.Codec) (*Room, *Member, error) {
	r, err := m.Get(roomID)
	if err != nil {
		return nil, nil, err
	}
	mem, err := r.Join(ctx, name, color, conn, codec)
	if err != nil {
		return nil, nil, err
	}
	return r, mem, nil
}

func (m *Manager) Get(id string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Leave removes a human from a room. A waiting room left empty is deleted
// at once; a started room left without humans is stopped and kept until
// the grace period runs out.
func (m *Manager) Leave(ctx context.Context, roomID, playerID string) error {
	r, err := m.Get(roomID)
	if err != nil {
		return err
	}
	left, err := r.Leave(ctx, playerID)
	if err != nil {
		return err
	}
	if left > 0 {
		return nil
	}
	if r.Status() == game.StatusWaiting {
		m.mu.Lock()
		delete(m.rooms, r.ID)
		m.dropOpen(r)
		m.mu.Unlock()
		r.close()
		log.Printf("Deleted empty room %s", r.ID)
		return nil
	}
	m.retire(r)
	r.abandon()
	return nil
}

// Start begins a room's match and takes it out of the open pool for good.
func (m *Manager) Start(ctx context.Context, roomID string) error {
	r, err := m.Get(roomID)
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	m.retire(r)
	return nil
}

func (m *Manager) AddBot(ctx context.Context, roomID string, d bot.Difficulty) (string, error) {
	r, err := m.Get(roomID)
	if err != nil {
		return "", err
	}
	return r.AddBot(ctx, d)
}

// List describes every known room, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Sweep purges rooms that finished at least the grace period ago, whose
// tick loop has stopped and that no human is still connected to. It returns
// how many were purged.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Room
	for id, r := range m.rooms {
		if r.Active() || r.Humans() > 0 || !r.expired(now, m.opts.FinishedGrace) {
			continue
		}
		delete(m.rooms, id)
		m.dropOpen(r)
		expired = append(expired, r)
	}
	m.mu.Unlock()

	swg := sizedwaitgroup.New(sweepConcurrency)
	for _, r := range expired {
		swg.Add()
		go func(r *Room) {
			defer swg.Done()
			defer func() {
				if p := recover(); p != nil {
					log.Printf("unexpected panic purging room %s: %v", r.ID, p)
				}
			}()
			r.close()
			log.Printf("Purged room %s after %s", r.ID, age(now.Sub(r.createdAt)))
		}(r)
	}
	swg.Wait()
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				log.Printf("Sweep purged %d rooms", n)
			}
		}
	}
}

// Shutdown stops every room and disconnects its members.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.open = nil
	m.mu.Unlock()

	swg := sizedwaitgroup.New(sweepConcurrency)
	for _, r := range rooms {
		swg.Add()
		go func(r *Room) {
			defer swg.Done()
			r.close()
		}(r)
	}
	swg.Wait()
	log.Printf("Stopped %d rooms", len(rooms))
}

// retire removes r from the open pool once it can no longer take joins. A
// full room that is still waiting stays pooled; a seat may free up.
func (m *Manager) retire(r *Room) {
	if r.Status() == game.StatusWaiting && r.Active() {
		return
	}
	m.mu.Lock()
	m.dropOpen(r)
	m.mu.Unlock()
}

// dropOpen removes r from the open list; mu must be held.
func (m *Manager) dropOpen(r *Room) {
	for i, o := range m.open {
		if o == r {
			m.open = append(m.open[:i], m.open[i+1:]...)
			return
		}
	}
}

func age(d time.Duration) string {
	return durafmt.Parse(d).LimitFirstN(2).String()
}
