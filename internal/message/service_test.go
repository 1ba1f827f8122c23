package message

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplechat/ripple/internal/message/event"
	"github.com/ripplechat/ripple/internal/users"
)

type memStore struct {
	msgs []Message
	seq  int
}

func (m *memStore) Insert(ctx context.Context, msg Message) (Message, error) {
	m.seq++
	msg.ID = fmt.Sprintf("m%d", m.seq)
	msg.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

func (m *memStore) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	for _, msg := range m.msgs {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	byToken map[string]users.User
	byID    map[string]users.User
	lookups int
}

func (d *fakeDirectory) GetByIdentityToken(ctx context.Context, token string) (users.User, error) {
	user, ok := d.byToken[token]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return user, nil
}

func (d *fakeDirectory) GetByID(ctx context.Context, id string) (users.User, error) {
	d.lookups++
	user, ok := d.byID[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return user, nil
}

type fakeMemberships map[string][]string

func (f fakeMemberships) Participants(ctx context.Context, conversationID string) ([]string, error) {
	return f[conversationID], nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(storageRef string) string { return "https://media.test/" + storageRef }

type recordingDispatcher struct {
	calls []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, conversationID, content string) error {
	d.calls = append(d.calls, content)
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeDirectory, *recordingDispatcher) {
	t.Helper()
	store := &memStore{}
	directory := &fakeDirectory{
		byToken: map[string]users.User{
			"tok-a": {ID: "u1", Name: "Alice", IdentityToken: "tok-a"},
			"tok-b": {ID: "u2", Name: "Bob", IdentityToken: "tok-b"},
			"tok-c": {ID: "u3", Name: "Carol", IdentityToken: "tok-c"},
		},
		byID: map[string]users.User{
			"u1": {ID: "u1", Name: "Alice", Email: "alice@test"},
			"u2": {ID: "u2", Name: "Bob", Email: "bob@test"},
		},
	}
	memberships := fakeMemberships{"c1": {"u1", "u2"}}
	dispatcher := &recordingDispatcher{}
	svc := NewService(nil, store, directory, memberships, fakeResolver{}, dispatcher, event.NewHub())
	return svc, store, directory, dispatcher
}

func TestSendTextAppendsAndDispatches(t *testing.T) {
	svc, store, _, dispatcher := newTestService(t)
	ctx := context.Background()

	msg, err := svc.SendText(ctx, "tok-a", "c1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "u1", msg.Sender)
	assert.Equal(t, TypeText, msg.Type)
	assert.Len(t, store.msgs, 1)

	// Every text append is offered to the dispatcher; trigger detection is
	// the dispatcher's concern.
	assert.Equal(t, []string{"hi"}, dispatcher.calls)
}

func TestSendTextNonParticipantForbidden(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	_, err := svc.SendText(context.Background(), "tok-c", "c1", "hello")
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.Empty(t, store.msgs, "forbidden send must append nothing")
}

func TestSendTextUnknownCaller(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.SendText(context.Background(), "tok-nobody", "c1", "hello")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestSendMediaMembershipChecked(t *testing.T) {
	svc, store, _, dispatcher := newTestService(t)
	ctx := context.Background()

	msg, err := svc.SendImage(ctx, "tok-b", "c1", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, TypeImage, msg.Type)
	assert.Equal(t, "https://media.test/ref-1", msg.Content)

	_, err = svc.SendVideo(ctx, "tok-c", "c1", "ref-2")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.SendImage(ctx, "tok-c", "c1", "ref-3")
	assert.ErrorIs(t, err, ErrNotParticipant)

	assert.Len(t, store.msgs, 1)
	assert.Empty(t, dispatcher.calls, "media sends never dispatch bot jobs")
}

func TestSendBotMessageBypassesMembership(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	msg, err := svc.SendBotMessage(context.Background(), "c1", "a reply", TypeText)
	require.NoError(t, err)
	assert.Equal(t, SenderBot, msg.Sender)
	assert.Len(t, store.msgs, 1)

	_, err = svc.SendBotMessage(context.Background(), "c1", "x", Type("audio"))
	assert.Error(t, err)
}

func TestListOrderAndProfileCache(t *testing.T) {
	svc, _, directory, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendText(ctx, "tok-a", "c1", "one")
	require.NoError(t, err)
	_, err = svc.SendText(ctx, "tok-b", "c1", "two")
	require.NoError(t, err)
	_, err = svc.SendText(ctx, "tok-a", "c1", "three")
	require.NoError(t, err)
	_, err = svc.SendBotMessage(ctx, "c1", "beep", TypeText)
	require.NoError(t, err)

	views, err := svc.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, views, 4)

	// Non-decreasing creation order.
	for i := 1; i < len(views); i++ {
		assert.False(t, views[i].CreatedAt.Before(views[i-1].CreatedAt))
	}

	assert.Equal(t, "Alice", views[0].Sender.Name)
	assert.Equal(t, "Bob", views[1].Sender.Name)
	assert.Equal(t, "Alice", views[2].Sender.Name)

	// Bot sentinel resolves to the fixed profile without a directory lookup.
	assert.Equal(t, SenderBot, views[3].Sender.Name)
	assert.Equal(t, "/gpt.png", views[3].Sender.Image)

	// Two distinct human senders, memoized within the call.
	assert.Equal(t, 2, directory.lookups)
}

func TestListBotImageProfile(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendBotMessage(ctx, "c1", "https://img.test/cat.png", TypeImage)
	require.NoError(t, err)

	views, err := svc.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "DALL-E", views[0].Sender.Name)
	assert.Equal(t, "/dall-e.png", views[0].Sender.Image)
}

func TestListPublishesToParticipantTopics(t *testing.T) {
	hub := event.NewHub()
	store := &memStore{}
	directory := &fakeDirectory{
		byToken: map[string]users.User{"tok-a": {ID: "u1", IdentityToken: "tok-a"}},
		byID:    map[string]users.User{"u1": {ID: "u1", Name: "Alice"}},
	}
	svc := NewService(nil, store, directory, fakeMemberships{"c1": {"u1", "u2"}}, nil, nil, hub)

	convCh, cancelConv := hub.Subscribe(event.ConversationTopic("c1"))
	defer cancelConv()
	userCh, cancelUser := hub.Subscribe(event.UserTopic("u2"))
	defer cancelUser()

	_, err := svc.SendText(context.Background(), "tok-a", "c1", "hi")
	require.NoError(t, err)

	select {
	case ev := <-convCh:
		assert.Equal(t, "message.created", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected conversation event")
	}
	select {
	case ev := <-userCh:
		assert.Equal(t, "c1", ev.ConversationID)
	case <-time.After(time.Second):
		t.Fatal("expected user event")
	}
}
