package service

import (
	"context"
	"log/slog"

	"dchat/internal/domain"
	"dchat/internal/markup"
)

const (
	defaultHistoryCount = 50
	maxHistoryCount     = 200
)

// Publisher sends a stored message view to the shared fanout exchange.
type Publisher interface {
	Publish(ctx context.Context, view *domain.MessageView) error
}

// ChatService implements the message distribution operations: durable
// append plus broker publish, and the cursor-based history queries.
type ChatService struct {
	messages   domain.MessageRepository
	identity   domain.Identity
	broker     Publisher
	maxHistory int
}

func NewChatService(messages domain.MessageRepository, identity domain.Identity, broker Publisher) *ChatService {
	return &ChatService{
		messages:   messages,
		identity:   identity,
		broker:     broker,
		maxHistory: maxHistoryCount,
	}
}

// SetHistoryPageSize overrides the per-request cap on history page
// sizes. Non-positive values are ignored.
func (s *ChatService) SetHistoryPageSize(n int) {
	if n > 0 {
		s.maxHistory = n
	}
}

// Send stores the message and then publishes it to the fanout exchange.
// The store write is durable before publish is attempted. A publish
// failure after a successful append is logged and swallowed: the message
// is stored but may not reach live subscribers until their next history
// poll. An empty text is a deliberate no-op, not an error; both the view
// and the error are nil in that case.
func (s *ChatService) Send(ctx context.Context, senderID, room, text string) (*domain.MessageView, error) {
	if senderID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if room == "" {
		return nil, domain.ErrInvalidArgument
	}
	if text == "" {
		return nil, nil
	}

	msg := &domain.Message{
		Room:     room,
		SenderID: senderID,
		Text:     text,
		HTML:     markup.ToHTML(text),
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		// Nothing was queued, so the caller may retry without duplicate risk.
		return nil, err
	}

	view := &domain.MessageView{
		Room:              msg.Room,
		ID:                msg.ID,
		SenderID:          msg.SenderID,
		SenderDisplayName: s.identity.ResolveDisplayName(ctx, senderID),
		HTML:              msg.HTML,
		Timestamp:         msg.CreatedAt.UnixMilli(),
	}

	if err := s.broker.Publish(ctx, view); err != nil {
		slog.Error("error publishing message, stored but not fanned out",
			slog.String("error", err.Error()),
			slog.String("room", view.Room),
			slog.Int64("message_id", view.ID))
	}

	return view, nil
}

// HistoryPageSize reports the page size a history query will actually
// use for the requested count. Requests outside (0, cap] fall back to
// the default. Callers paging through history can rely on a short page
// meaning the room is drained.
func (s *ChatService) HistoryPageSize(count int) int {
	if count <= 0 || count > s.maxHistory {
		if s.maxHistory < defaultHistoryCount {
			return s.maxHistory
		}
		return defaultHistoryCount
	}
	return count
}

// MessagesBefore returns up to count views older than beforeID, newest
// first. A nil beforeID starts from the newest message in the room.
func (s *ChatService) MessagesBefore(ctx context.Context, room string, beforeID *int64, count int) ([]*domain.MessageView, error) {
	if room == "" {
		return nil, domain.ErrInvalidArgument
	}
	return s.messages.Before(ctx, room, beforeID, s.HistoryPageSize(count))
}

// MessagesAfter returns up to limit views newer than afterID, oldest
// first. Callers stream the full gap by advancing afterID per page.
func (s *ChatService) MessagesAfter(ctx context.Context, room string, afterID int64, limit int) ([]*domain.MessageView, error) {
	if room == "" {
		return nil, domain.ErrInvalidArgument
	}
	return s.messages.After(ctx, room, afterID, s.HistoryPageSize(limit))
}
