package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/delta-silence/ticket-intake/internal/domain"
	"github.com/delta-silence/ticket-intake/internal/events"
	"github.com/delta-silence/ticket-intake/internal/store"
	apperrors "github.com/delta-silence/ticket-intake/pkg/util/errorutil"
)

// Messages returned to clients for upstream failures.
const (
	ErrMsgLoadFailed   = "Failed to load GitHub file"
	ErrMsgCommitFailed = "GitHub commit failed"
)

// TicketService appends submitted tickets to the stored collection.
type TicketService struct {
	store      store.ContentStore
	path       string
	keys       *KeyGenerator
	now        func() time.Time
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store store.ContentStore
	// Path of the collection file inside the store.
	Path       string
	Keys       *KeyGenerator
	Now        func() time.Time
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Topic       string
	Username    string
	Subject     string
	Description string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	keys := deps.Keys
	if keys == nil {
		keys = NewKeyGenerator(nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		path:       deps.Path,
		keys:       keys,
		now:        now,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket reads the collection, appends a new open ticket and writes the
// collection back guarded by the hash from the read. A concurrent writer makes
// the write fail; nothing is retried.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Key:         s.keys.NewKey(),
		Topic:       input.Topic,
		Username:    input.Username,
		Subject:     input.Subject,
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   s.now().UTC(),
	}

	file, err := s.store.GetFile(ctx, s.path)
	if err != nil {
		return nil, upstreamError(ErrMsgLoadFailed, err)
	}

	collection, err := DecodeCollection(file.Content)
	if err != nil {
		return nil, err
	}

	entry, err := ticket.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding ticket: %w", err)
	}
	collection = append(collection, entry)

	content, err := EncodeCollection(collection)
	if err != nil {
		return nil, err
	}

	message := "New ticket: " + ticket.Key
	if err := s.store.PutFile(ctx, s.path, content, file.SHA, message); err != nil {
		return nil, upstreamError(ErrMsgCommitFailed, err)
	}

	s.logger.Info("ticket committed",
		zap.String("key", ticket.Key),
		zap.String("topic", ticket.Topic),
		zap.Int("collection_size", len(collection)))

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketKey: ticket.Key,
		Payload: events.TicketCreatedPayload{
			Topic:    ticket.Topic,
			Username: ticket.Username,
			Subject:  ticket.Subject,
			Position: len(collection) - 1,
		},
	})
	return ticket, nil
}

// DecodeCollection parses the stored collection. Only zero-length content is
// an empty collection; whitespace-only content is malformed. Entries are kept
// as raw JSON so existing tickets are written back unchanged.
func DecodeCollection(content []byte) ([]json.RawMessage, error) {
	if len(content) == 0 {
		return []json.RawMessage{}, nil
	}
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, errors.New("stored ticket collection is blank")
	}
	if trimmed[0] != '[' {
		return nil, errors.New("stored ticket collection is not a JSON array")
	}
	var collection []json.RawMessage
	if err := json.Unmarshal(trimmed, &collection); err != nil {
		return nil, fmt.Errorf("decoding ticket collection: %w", err)
	}
	if collection == nil {
		collection = []json.RawMessage{}
	}
	return collection, nil
}

// EncodeCollection renders the collection with two-space indentation and
// without HTML escaping or a trailing newline.
func EncodeCollection(collection []json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(collection); err != nil {
		return nil, fmt.Errorf("encoding ticket collection: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// upstreamError keeps the store's status and body for the client. Transport
// failures are returned as-is and end up as server errors.
func upstreamError(message string, err error) error {
	apiErr, ok := store.AsAPIError(err)
	if !ok {
		return err
	}
	return apperrors.NewUpstreamError(message, apiErr.StatusCode, apiErr.Body, err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
