package eventbus

import (
	"errors"
	"fmt"

	"fanzone/internal/domain"
)

var (
	// ErrInvalidPayload means the payload cannot be serialized for other
	// instances. This is a programming error in the producer.
	ErrInvalidPayload = errors.New("event payload is not serializable")

	// ErrChannelUnavailable is returned by transports that cannot reach other
	// instances. The bus treats it as local-only mode.
	ErrChannelUnavailable = errors.New("cross-context channel unavailable")
)

// DeliveryError describes one listener that failed while handling an event.
type DeliveryError struct {
	EventType domain.EventType
	Err       error
	Stack     []byte
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering %s: %v", e.EventType, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
