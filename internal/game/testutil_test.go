package game

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"drawdash_backend/internal/store"
)

// fakeBus records broadcasts instead of publishing them, so tests can assert
// on the exact event stream a transition produced.
type fakeBus struct {
	mu     sync.Mutex
	events []busEvent
}

type busEvent struct {
	Topic   string // room id, or "user:<id>" for targeted sends
	Exclude string
	Msg     Message
}

func (b *fakeBus) Broadcast(_ context.Context, roomID string, msg Message) {
	b.record(busEvent{Topic: roomID, Msg: msg})
}

func (b *fakeBus) BroadcastExcept(_ context.Context, roomID, except string, msg Message) {
	b.record(busEvent{Topic: roomID, Exclude: except, Msg: msg})
}

func (b *fakeBus) SendToUser(_ context.Context, userID string, msg Message) {
	b.record(busEvent{Topic: "user:" + userID, Msg: msg})
}

func (b *fakeBus) record(ev busEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *fakeBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

func (b *fakeBus) ofType(typ string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, ev := range b.events {
		if ev.Msg.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (b *fakeBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Msg.Type
	}
	return out
}

func payloadField(t *testing.T, ev busEvent, field string) any {
	t.Helper()
	m, ok := ev.Msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload of %s is not a map: %#v", ev.Msg.Type, ev.Msg.Payload)
	}
	return m[field]
}

type testEnv struct {
	mr      *miniredis.Miniredis
	store   *store.Store
	bus     *fakeBus
	rooms   *RoomState
	players *PlayerRegistry
	words   *WordService
	engine  *TurnEngine
	watcher *TimerWatcher
}

// newTestEnv wires the whole engine against a miniredis, with seeded RNGs so
// random picks are reproducible.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.New(client, 0)
	t.Cleanup(func() { client.Close() })

	bus := &fakeBus{}
	rooms := NewRoomState(st)
	players := NewPlayerRegistry(st, rooms, bus, rand.New(rand.NewSource(1)))
	words := NewWordService(st, rand.New(rand.NewSource(1)))
	engine := NewTurnEngine(st, rooms, players, words, bus)
	watcher := NewTimerWatcher(st, rooms, engine, words, bus, "node-test")

	return &testEnv{
		mr:      mr,
		store:   st,
		bus:     bus,
		rooms:   rooms,
		players: players,
		words:   words,
		engine:  engine,
		watcher: watcher,
	}
}

// joinAll creates the room with the given settings and joins every player.
func (env *testEnv) joinAll(t *testing.T, roomID string, set Settings, uids ...string) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.rooms.GetOrInitialize(ctx, roomID, set); err != nil {
		t.Fatalf("init room: %v", err)
	}
	for _, uid := range uids {
		if _, err := env.players.Add(ctx, roomID, uid, set); err != nil {
			t.Fatalf("add %s: %v", uid, err)
		}
	}
	env.bus.reset()
}
