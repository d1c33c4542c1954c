package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meandu-go/internal/config"
	"meandu-go/internal/imtypes"
	"meandu-go/internal/storage"
)

type relayRecorder struct {
	mu     sync.Mutex
	frames []imtypes.RoomFrame
}

func (r *relayRecorder) Deliver(f imtypes.RoomFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

type memCache struct {
	mu          sync.Mutex
	data        map[string][]imtypes.RoomMessage
	gets, sets  int
	invalidated []string
	err         error
}

func (c *memCache) Get(_ context.Context, roomID string) ([]imtypes.RoomMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return nil, false, c.err
	}
	m, ok := c.data[roomID]
	return m, ok, nil
}

func (c *memCache) Set(_ context.Context, roomID string, msgs []imtypes.RoomMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.err != nil {
		return c.err
	}
	if c.data == nil {
		c.data = map[string][]imtypes.RoomMessage{}
	}
	c.data[roomID] = msgs
	return nil
}

func (c *memCache) Invalidate(_ context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, roomID)
	delete(c.data, roomID)
	return c.err
}

func newTestService(t *testing.T, cache HistoryCache) (RoomService, *relayRecorder) {
	t.Helper()
	db, err := storage.InitDB(config.DatabaseConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "rooms.db")})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rec := &relayRecorder{}
	svc := NewRoomService(storage.NewGormRoomRepository(db), storage.NewGormMessageRepository(db), cache, NewDirectRelay(rec))
	return svc, rec
}

func textMsg(id, sender, body string) imtypes.RoomMessage {
	return imtypes.RoomMessage{
		ID: id, Sender: sender, SenderName: "Name " + sender, SenderThumbnail: imtypes.ThumbnailNone,
		Message: body, Kind: imtypes.TextMessageKind, Timestamp: "2024-05-01T10:00:00.000Z",
	}
}

func TestRoomService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	room, err := svc.CreateRoom(ctx, CreateRoomInput{OwnerID: "u1", Name: "  Lunch ", Description: "where"})
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "Lunch", room.Name)
	assert.Equal(t, "u1", room.User)

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room, got)

	_, err = svc.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	rooms, err := svc.ListRooms(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []imtypes.Room{room}, rooms)

	_, err = svc.CreateRoom(ctx, CreateRoomInput{OwnerID: "u1", Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestRoomService_PostMessagePersistsAndRelays(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, nil)

	require.NoError(t, svc.PostMessage(ctx, "room-1", "conn-a", "u1", textMsg("m1", "u1", "hello")))
	require.NoError(t, svc.PostMessage(ctx, "room-1", "conn-b", "u2", textMsg("m2", "u2", "hi back")))

	hist, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, textMsg("m1", "u1", "hello"), hist[0])
	assert.Equal(t, "m2", hist[1].ID)

	require.Len(t, rec.frames, 2)
	assert.Equal(t, "conn-a", rec.frames[0].OriginID)
	assert.Equal(t, imtypes.FrameTypeMessage, rec.frames[0].Type)
	res, err := imtypes.DecodeFrame(rec.frames[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Message.Message)
}

func TestRoomService_PostMessageRejectsForeignSender(t *testing.T) {
	svc, rec := newTestService(t, nil)

	err := svc.PostMessage(context.Background(), "room-1", "conn-a", "u1", textMsg("m1", "u2", "spoof"))
	assert.ErrorIs(t, err, ErrSenderMismatch)
	assert.Empty(t, rec.frames)
}

func TestRoomService_DuplicateMessageNotRelayedTwice(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, nil)

	msg := textMsg("m1", "u1", "once")
	require.NoError(t, svc.PostMessage(ctx, "room-1", "conn-a", "u1", msg))
	require.NoError(t, svc.PostMessage(ctx, "room-1", "conn-a", "u1", msg))

	hist, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
	assert.Len(t, rec.frames, 1)
}

func TestRoomService_HistoryCacheAside(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{}
	svc, _ := newTestService(t, cache)

	require.NoError(t, svc.PostMessage(ctx, "room-1", "c", "u1", textMsg("m1", "u1", "one")))
	assert.Equal(t, []string{"room-1"}, cache.invalidated)

	first, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets, "second read is served from cache")

	require.NoError(t, svc.PostMessage(ctx, "room-1", "c", "u1", textMsg("m2", "u1", "two")))
	third, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, third, 2)
}

func TestRoomService_HistoryWithBrokenCache(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{err: errors.New("connection refused")}
	svc, _ := newTestService(t, cache)

	require.NoError(t, svc.PostMessage(ctx, "room-1", "c", "u1", textMsg("m1", "u1", "one")))
	hist, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRoomService_PostTyping(t *testing.T) {
	svc, rec := newTestService(t, nil)

	require.NoError(t, svc.PostTyping(context.Background(), "room-1", "conn-a", imtypes.TypingUpdate{Kind: imtypes.TypingKindTyping, SenderName: "Ada"}))
	require.Len(t, rec.frames, 1)
	assert.Equal(t, imtypes.FrameTypeTyping, rec.frames[0].Type)
	assert.JSONEq(t, `{"type":"typing","kind":"typing","sender_name":"Ada"}`, string(rec.frames[0].Payload))

	hist, err := svc.History(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

type fakeProducer struct {
	frames []imtypes.RoomFrame
	err    error
}

func (p *fakeProducer) PublishFrame(_ context.Context, frame imtypes.RoomFrame) error {
	if p.err != nil {
		return p.err
	}
	p.frames = append(p.frames, frame)
	return nil
}

func (p *fakeProducer) Close() {}

func TestKafkaRelay(t *testing.T) {
	p := &fakeProducer{}
	relay := NewKafkaRelay(p)
	frame := imtypes.RoomFrame{RoomID: "room-1", OriginID: "c", Type: imtypes.FrameTypeTyping, Payload: json.RawMessage(`{"a":1}`)}

	require.NoError(t, relay.Relay(context.Background(), frame))
	require.Len(t, p.frames, 1)
	assert.Equal(t, frame, p.frames[0])

	p.err = errors.New("broker down")
	assert.Error(t, relay.Relay(context.Background(), frame))
}
