package eventbus

import "context"

// NoopTransport stands in where no cross-instance channel exists.
type NoopTransport struct{}

func (NoopTransport) Send(context.Context, []byte) error {
	return ErrChannelUnavailable
}

func (NoopTransport) OnReceive(func([]byte)) {}

func (NoopTransport) Close() error {
	return nil
}
