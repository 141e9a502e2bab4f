package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/structures"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage        = errors.New("dispatcher: message text is empty")
	ErrInvalidID           = errors.New("dispatcher: message id must be a single path segment")
	ErrInvalidParticipants = errors.New("dispatcher: sender and receiver must be two different users")
	ErrMissingID           = errors.New("dispatcher: message id is required")
	ErrPartialDelivery     = errors.New("dispatcher: message stored for sender only")
)

type Stage string

const (
	StageSender   Stage = "sender"
	StageReceiver Stage = "receiver"
)

// SendError reports which mailbox write failed. A receiver stage failure means
// the sender's copy was written and left in place.
type SendError struct {
	Stage     Stage
	MessageID string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("dispatcher: %s mailbox write for %s failed: %v", e.Stage, e.MessageID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

func (e *SendError) Is(target error) bool {
	return target == ErrPartialDelivery && e.Stage == StageReceiver
}

type Options struct {
	Store      instance.Store
	Prometheus instance.Prometheus
}

type Dispatcher struct {
	store instance.Store
	prom  instance.Prometheus
	log   *zap.SugaredLogger
}

func New(opt Options) *Dispatcher {
	return &Dispatcher{
		store: opt.Store,
		prom:  opt.Prometheus,
		log:   zap.S().Named("dispatcher"),
	}
}

// NewMessageID returns the current unix millis followed by a random number
// below 1000. Two sends in the same millisecond can collide.
func NewMessageID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + strconv.Itoa(rand.Intn(1000))
}

// Compose builds an outgoing message. Text is trimmed and must not be blank.
func Compose(senderID, receiverID, text string, now time.Time) (structures.Message, error) {
	msg := structures.Message{
		ID:         NewMessageID(now),
		Text:       strings.TrimSpace(text),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Timestamp:  now.UnixMilli(),
	}

	if err := validate(msg); err != nil {
		return structures.Message{}, err
	}

	return msg, nil
}

// segment reports whether id can be used as one element of a store path.
func segment(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}

func validate(msg structures.Message) error {
	switch {
	case !segment(msg.SenderID) || !segment(msg.ReceiverID) || msg.SenderID == msg.ReceiverID:
		return ErrInvalidParticipants
	case msg.ID == "":
		return ErrMissingID
	case !segment(msg.ID):
		return ErrInvalidID
	case strings.TrimSpace(msg.Text) == "":
		return ErrEmptyMessage
	}

	return nil
}

// Send writes msg into the sender's mailbox and then the receiver's. Both
// writes must succeed. There is no retry and no rollback: if the second write
// fails the sender keeps the message and a SendError matching
// ErrPartialDelivery is returned. Sending the same message again overwrites
// both copies with identical content.
func (d *Dispatcher) Send(ctx context.Context, msg structures.Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	b, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("dispatcher: encode %s: %w", msg.ID, err)
	}

	if err := d.store.Set(ctx, structures.MessagePath(msg.SenderID, msg.ReceiverID, msg.ID), b); err != nil {
		return d.fail(StageSender, msg, err)
	}

	if err := d.store.Set(ctx, structures.MessagePath(msg.ReceiverID, msg.SenderID, msg.ID), b); err != nil {
		return d.fail(StageReceiver, msg, err)
	}

	d.prom.MessageSent()

	return nil
}

func (d *Dispatcher) fail(stage Stage, msg structures.Message, err error) error {
	d.prom.MessageSendFailed(string(stage))

	d.log.Errorw("message write failed",
		"stage", stage,
		"message_id", msg.ID,
		"sender_id", msg.SenderID,
		"receiver_id", msg.ReceiverID,
		"error", err,
	)

	return &SendError{
		Stage:     stage,
		MessageID: msg.ID,
		Err:       err,
	}
}
