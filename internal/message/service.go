package message

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

// ErrNotParticipant is returned when the caller is not in the target
// conversation's participant set.
var ErrNotParticipant = errors.New("you are not a part of this conversation")

// Service appends and reads conversation messages. All user-initiated sends
// resolve the caller via the directory and verify membership before writing;
// SendBotMessage is the privileged system-only entry point.
type Service struct {
	store       Store
	directory   Directory
	memberships Memberships
	media       Resolver
	dispatcher  Dispatcher
	events      event.Publisher
	logger      *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, store Store, directory Directory, memberships Memberships, media Resolver, dispatcher Dispatcher, events event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:       store,
		directory:   directory,
		memberships: memberships,
		media:       media,
		dispatcher:  dispatcher,
		events:      events,
		logger:      log.With(slog.String("service", "message")),
	}
}

// SendText appends a text message from the caller. Messages carrying a bot
// trigger prefix additionally schedule an asynchronous reply job; the append
// itself never waits for it.
func (s *Service) SendText(ctx context.Context, identityToken, conversationID, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("content is required")
	}
	sender, participants, err := s.authorizeSender(ctx, identityToken, conversationID)
	if err != nil {
		return Message{}, err
	}

	msg, err := s.store.Insert(ctx, Message{
		ConversationID: conversationID,
		Sender:         sender.ID,
		Content:        content,
		Type:           TypeText,
	})
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	s.publishCreated(msg, participants)

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, conversationID, content); err != nil {
			// The mutation already succeeded; a lost bot job is logged only.
			s.logger.Error("bot dispatch failed",
				slog.String("conversation_id", conversationID),
				slog.Any("error", err))
		}
	}
	return msg, nil
}

// SendImage appends an image message, resolving the storage ref to a URL.
func (s *Service) SendImage(ctx context.Context, identityToken, conversationID, storageRef string) (Message, error) {
	return s.sendMedia(ctx, identityToken, conversationID, storageRef, TypeImage)
}

// SendVideo appends a video message, resolving the storage ref to a URL.
func (s *Service) SendVideo(ctx context.Context, identityToken, conversationID, storageRef string) (Message, error) {
	return s.sendMedia(ctx, identityToken, conversationID, storageRef, TypeVideo)
}

func (s *Service) sendMedia(ctx context.Context, identityToken, conversationID, storageRef string, msgType Type) (Message, error) {
	if strings.TrimSpace(storageRef) == "" {
		return Message{}, fmt.Errorf("storage ref is required")
	}
	// Media sends run the same membership check as text sends.
	sender, participants, err := s.authorizeSender(ctx, identityToken, conversationID)
	if err != nil {
		return Message{}, err
	}

	content := storageRef
	if s.media != nil {
		content = s.media.Resolve(storageRef)
	}
	msg, err := s.store.Insert(ctx, Message{
		ConversationID: conversationID,
		Sender:         sender.ID,
		Content:        content,
		Type:           msgType,
	})
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	s.publishCreated(msg, participants)
	return msg, nil
}

// SendBotMessage writes a reply attributed to the bot sentinel. No caller
// identity or membership check applies; only the bot worker calls this.
func (s *Service) SendBotMessage(ctx context.Context, conversationID, content string, msgType Type) (Message, error) {
	if !msgType.Valid() {
		return Message{}, fmt.Errorf("invalid message type %q", msgType)
	}
	msg, err := s.store.Insert(ctx, Message{
		ConversationID: conversationID,
		Sender:         SenderBot,
		Content:        content,
		Type:           msgType,
	})
	if err != nil {
		return Message{}, fmt.Errorf("insert bot message: %w", err)
	}

	participants, err := s.memberships.Participants(ctx, conversationID)
	if err != nil {
		s.logger.Warn("participants lookup for bot message events failed",
			slog.String("conversation_id", conversationID), slog.Any("error", err))
	}
	s.publishCreated(msg, participants)
	return msg, nil
}

// List returns all messages of a conversation in creation order, each with
// the sender profile joined in. Profiles are memoized per call so repeated
// senders cost one directory lookup.
func (s *Service) List(ctx context.Context, conversationID string) ([]View, error) {
	msgs, err := s.store.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	cache := map[string]users.Profile{}
	views := make([]View, 0, len(msgs))
	for _, msg := range msgs {
		profile, err := s.senderProfile(ctx, cache, msg)
		if err != nil {
			return nil, err
		}
		views = append(views, View{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Content:        msg.Content,
			Type:           msg.Type,
			CreatedAt:      msg.CreatedAt,
			Sender:         profile,
		})
	}
	return views, nil
}

func (s *Service) senderProfile(ctx context.Context, cache map[string]users.Profile, msg Message) (users.Profile, error) {
	if msg.Sender == SenderBot {
		// Fixed synthetic profile; no directory lookup.
		return botProfile(msg.Type), nil
	}
	if profile, ok := cache[msg.Sender]; ok {
		return profile, nil
	}
	user, err := s.directory.GetByID(ctx, msg.Sender)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			// Sender record vanished; keep the message with a bare profile.
			profile := users.Profile{ID: msg.Sender}
			cache[msg.Sender] = profile
			return profile, nil
		}
		return users.Profile{}, fmt.Errorf("resolve sender %s: %w", msg.Sender, err)
	}
	profile := user.Profile()
	cache[msg.Sender] = profile
	return profile, nil
}

func (s *Service) authorizeSender(ctx context.Context, identityToken, conversationID string) (users.User, []string, error) {
	sender, err := s.directory.GetByIdentityToken(ctx, identityToken)
	if err != nil {
		return users.User{}, nil, err
	}
	participants, err := s.memberships.Participants(ctx, conversationID)
	if err != nil {
		return users.User{}, nil, err
	}
	if !slices.Contains(participants, sender.ID) {
		return users.User{}, nil, ErrNotParticipant
	}
	return sender, participants, nil
}

func (s *Service) publishCreated(msg Message, participants []string) {
	if s.events == nil {
		return
	}
	ev := event.Event{
		Type:           "message.created",
		ConversationID: msg.ConversationID,
		Payload:        msg,
	}
	s.events.Publish(event.ConversationTopic(msg.ConversationID), ev)
	for _, userID := range participants {
		// Conversation-list subscribers re-evaluate their last message.
		s.events.Publish(event.UserTopic(userID), ev)
	}
}
