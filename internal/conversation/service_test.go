package conversation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplechat/ripple/internal/users"
)

type memStore struct {
	mu    sync.Mutex
	convs []Conversation
	last  map[string]*LastMessage
	seq   int
}

func newMemStore() *memStore {
	return &memStore{last: map[string]*LastMessage{}}
}

func (m *memStore) FindByParticipants(ctx context.Context, a, b []string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.convs {
		if slices.Equal(conv.Participants, a) || slices.Equal(conv.Participants, b) {
			return conv, nil
		}
	}
	return Conversation{}, ErrConversationNotFound
}

func (m *memStore) Insert(ctx context.Context, conv Conversation) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Mirrors the conversations_direct_pair_key unique index.
	if !conv.IsGroup && len(conv.Participants) == 2 {
		for _, existing := range m.convs {
			if !existing.IsGroup && samePair(existing.Participants, conv.Participants) {
				return Conversation{}, errDuplicatePair
			}
		}
	}
	m.seq++
	conv.ID = fmt.Sprintf("c%d", m.seq)
	conv.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	m.convs = append(m.convs, conv)
	return conv, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.convs {
		if conv.ID == id {
			return conv, nil
		}
	}
	return Conversation{}, ErrConversationNotFound
}

func (m *memStore) ListByParticipant(ctx context.Context, userID string) ([]Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Conversation
	for _, conv := range m.convs {
		if slices.Contains(conv.Participants, userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *memStore) LastMessage(ctx context.Context, conversationID string) (*LastMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[conversationID], nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs)
}

func samePair(a, b []string) bool {
	if len(a) != 2 || len(b) != 2 {
		return false
	}
	return slices.Equal(a, b) || (a[0] == b[1] && a[1] == b[0])
}

type fakeDirectory struct {
	byToken map[string]users.User
	byID    map[string]users.User
}

func (d *fakeDirectory) GetByIdentityToken(ctx context.Context, token string) (users.User, error) {
	user, ok := d.byToken[token]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return user, nil
}

func (d *fakeDirectory) GetByID(ctx context.Context, id string) (users.User, error) {
	user, ok := d.byID[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return user, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(storageRef string) string { return "https://media.test/" + storageRef }

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	directory := &fakeDirectory{
		byToken: map[string]users.User{
			"tok-a": {ID: "u1", Name: "Alice", IdentityToken: "tok-a"},
		},
		byID: map[string]users.User{
			"u1": {ID: "u1", Name: "Alice"},
			"u2": {ID: "u2", Name: "Bob", Image: "https://img.test/bob.png"},
		},
	}
	return NewService(nil, store, directory, fakeResolver{}, nil), store
}

func TestCreateIdempotentUnderReversal(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u2"}})
	require.NoError(t, err)

	// Reversed argument order returns the same conversation, no duplicate.
	second, err := svc.Create(ctx, CreateRequest{Participants: []string{"u2", "u1"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.convs, 1)

	// Identical order as well.
	third, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u2"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Len(t, store.convs, 1)
}

// blindStore misses the dedup lookup a fixed number of times, modelling a
// concurrent create landing between the lookup and the insert.
type blindStore struct {
	*memStore
	misses int
}

func (s *blindStore) FindByParticipants(ctx context.Context, a, b []string) (Conversation, error) {
	if s.misses > 0 {
		s.misses--
		return Conversation{}, ErrConversationNotFound
	}
	return s.memStore.FindByParticipants(ctx, a, b)
}

func TestCreateSamePairLosingRaceReturnsWinner(t *testing.T) {
	store := &blindStore{memStore: newMemStore(), misses: 2}
	svc := NewService(nil, store, &fakeDirectory{}, fakeResolver{}, nil)
	ctx := context.Background()

	// Both creates miss the dedup lookup; the second insert hits the pair
	// unique index and must resolve to the first conversation, not error and
	// not duplicate.
	first, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u2"}})
	require.NoError(t, err)

	second, err := svc.Create(ctx, CreateRequest{Participants: []string{"u2", "u1"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.count())
}

func TestCreateConcurrentSamePair(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	const callers = 8
	results := make(chan Conversation, callers)
	errs := make(chan error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		participants := []string{"u1", "u2"}
		if i%2 == 1 {
			participants = []string{"u2", "u1"}
		}
		go func(participants []string) {
			defer done.Done()
			start.Wait()
			conv, err := svc.Create(ctx, CreateRequest{Participants: participants})
			if err != nil {
				errs <- err
				return
			}
			results <- conv
		}(participants)
	}
	start.Done()
	done.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.count())
	var firstID string
	for conv := range results {
		if firstID == "" {
			firstID = conv.ID
		}
		assert.Equal(t, firstID, conv.ID)
	}
}

func TestCreateGroupPermutationNotDeduped(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u2", "u3"}, IsGroup: true})
	require.NoError(t, err)

	// Only exact-or-reversed order dedups; other permutations create a
	// second record. Known quirk.
	_, err = svc.Create(ctx, CreateRequest{Participants: []string{"u2", "u1", "u3"}, IsGroup: true})
	require.NoError(t, err)
	assert.Len(t, store.convs, 2)

	_, err = svc.Create(ctx, CreateRequest{Participants: []string{"u3", "u2", "u1"}, IsGroup: true})
	require.NoError(t, err)
	assert.Len(t, store.convs, 2)
}

func TestCreateResolvesGroupImageAndAdmin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateRequest{
		Participants: []string{"u1", "u2", "u3"},
		IsGroup:      true,
		GroupName:    "team",
		GroupImage:   "ref-1",
		Admin:        "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/ref-1", conv.GroupImage)
	assert.Equal(t, "u1", conv.AdminID)

	// Admin is dropped for 1:1 conversations.
	direct, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u4"}, Admin: "u1"})
	require.NoError(t, err)
	assert.Empty(t, direct.AdminID)
}

func TestListMine(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	direct, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u2"}})
	require.NoError(t, err)
	group, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u2", "u3"}, IsGroup: true, GroupName: "team"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{Participants: []string{"u2", "u3"}})
	require.NoError(t, err)

	store.last[direct.ID] = &LastMessage{ID: "m1", Sender: "u2", Content: "hey", Type: "text"}

	views, err := svc.ListMine(ctx, "tok-a")
	require.NoError(t, err)
	require.Len(t, views, 2, "only conversations containing the caller")

	for _, view := range views {
		assert.Contains(t, view.Participants, "u1")
	}

	byID := map[string]View{}
	for _, v := range views {
		byID[v.ID] = v
	}

	// 1:1 view joins the peer profile and last message.
	require.NotNil(t, byID[direct.ID].Peer)
	assert.Equal(t, "Bob", byID[direct.ID].Peer.Name)
	require.NotNil(t, byID[direct.ID].LastMessage)
	assert.Equal(t, "hey", byID[direct.ID].LastMessage.Content)

	// Group view carries no peer; empty conversation has no last message.
	assert.Nil(t, byID[group.ID].Peer)
	assert.Nil(t, byID[group.ID].LastMessage)
}

func TestListMineUnknownCaller(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ListMine(context.Background(), "tok-nobody")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestParticipants(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateRequest{Participants: []string{"u1", "u2"}})
	require.NoError(t, err)

	got, err := svc.Participants(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got)

	_, err = svc.Participants(ctx, "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
