package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ripplechat/ripple/internal/message/event"
	"github.com/ripplechat/ripple/internal/users"
)

// ErrConversationNotFound is returned when the target conversation does not
// exist.
var ErrConversationNotFound = errors.New("conversation not found")

// errDuplicatePair is returned by Store.Insert when a direct conversation for
// the same unordered participant pair already exists. The pair is guarded by a
// unique index, so the dedup lookup and the insert need no shared transaction.
var errDuplicatePair = errors.New("conversation already exists for participant pair")

// Service manages conversation records and the membership-filtered list view.
type Service struct {
	store     Store
	directory Directory
	media     Resolver
	events    event.Publisher
	logger    *slog.Logger
}

// NewService creates a conversation service.
func NewService(log *slog.Logger, store Store, directory Directory, media Resolver, events event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		directory: directory,
		media:     media,
		events:    events,
		logger:    log.With(slog.String("service", "conversation")),
	}
}

// Create inserts a conversation, idempotently: if a conversation already
// exists whose participant sequence equals the request's or its exact
// reverse, that conversation is returned instead of a duplicate. For 1:1
// chats this makes creation order-insensitive. For groups of more than two
// the check is order-sensitive and arbitrary permutations are not deduped;
// known quirk, kept as-is.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Conversation, error) {
	participants := make([]string, 0, len(req.Participants))
	for _, p := range req.Participants {
		p = strings.TrimSpace(p)
		if p == "" {
			return Conversation{}, fmt.Errorf("participant id must not be empty")
		}
		participants = append(participants, p)
	}
	if len(participants) < 2 {
		return Conversation{}, fmt.Errorf("a conversation needs at least two participants")
	}

	existing, err := s.store.FindByParticipants(ctx, participants, reversed(participants))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return Conversation{}, fmt.Errorf("dedup lookup: %w", err)
	}

	groupImage := req.GroupImage
	if groupImage != "" && s.media != nil {
		groupImage = s.media.Resolve(groupImage)
	}
	admin := req.Admin
	if !req.IsGroup {
		// Admin is only meaningful on group conversations.
		admin = ""
	}

	conv, err := s.store.Insert(ctx, Conversation{
		Participants: participants,
		IsGroup:      req.IsGroup,
		GroupName:    req.GroupName,
		GroupImage:   groupImage,
		AdminID:      admin,
	})
	if errors.Is(err, errDuplicatePair) {
		// A concurrent create for the same pair landed between our dedup
		// lookup and the insert; return the winner.
		existing, findErr := s.store.FindByParticipants(ctx, participants, reversed(participants))
		if findErr != nil {
			return Conversation{}, fmt.Errorf("resolve winning conversation: %w", findErr)
		}
		return existing, nil
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	s.logger.Info("conversation created",
		slog.String("conversation_id", conv.ID),
		slog.Bool("is_group", conv.IsGroup))

	if s.events != nil {
		for _, userID := range conv.Participants {
			s.events.Publish(event.UserTopic(userID), event.Event{
				Type:           "conversation.created",
				ConversationID: conv.ID,
				Payload:        conv,
			})
		}
	}
	return conv, nil
}

// ListMine resolves the caller by identity token and returns each of their
// conversations denormalized with the peer profile (1:1 only) and the most
// recent message.
func (s *Service) ListMine(ctx context.Context, identityToken string) ([]View, error) {
	caller, err := s.directory.GetByIdentityToken(ctx, identityToken)
	if err != nil {
		return nil, err
	}

	convs, err := s.store.ListByParticipant(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	views := make([]View, 0, len(convs))
	for _, conv := range convs {
		view := View{Conversation: conv}

		if !conv.IsGroup {
			if peerID := otherParticipant(conv.Participants, caller.ID); peerID != "" {
				peer, err := s.directory.GetByID(ctx, peerID)
				if err == nil {
					profile := peer.Profile()
					view.Peer = &profile
				} else if !errors.Is(err, users.ErrUserNotFound) {
					return nil, fmt.Errorf("resolve peer %s: %w", peerID, err)
				}
			}
		}

		last, err := s.store.LastMessage(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("last message for %s: %w", conv.ID, err)
		}
		view.LastMessage = last
		views = append(views, view)
	}
	return views, nil
}

// Participants returns the participant set of a conversation. Implements the
// membership lookup used by the message store.
func (s *Service) Participants(ctx context.Context, conversationID string) ([]string, error) {
	conv, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return conv.Participants, nil
}

func reversed(ids []string) []string {
	out := slices.Clone(ids)
	slices.Reverse(out)
	return out
}

func otherParticipant(participants []string, selfID string) string {
	for _, id := range participants {
		if id != selfID {
			return id
		}
	}
	return ""
}
