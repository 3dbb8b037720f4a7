package layer

import (
	"errors"
	"fmt"
)

// ErrChannelLimitExceeded is matched by every *ChannelLimitError.
var ErrChannelLimitExceeded = errors.New("channel limit exceeded")

// ChannelLimitError identifies the first output layer with too many channels.
type ChannelLimitError struct {
	Index    int
	Channels int
}

func (e *ChannelLimitError) Error() string {
	return fmt.Sprintf("%s: output layer %d has %d channels (maximum %d)",
		ErrChannelLimitExceeded, e.Index, e.Channels, MaxChannels)
}

func (e *ChannelLimitError) Unwrap() error { return ErrChannelLimitExceeded }

// Validate checks a produced stack before any of it is applied. Every layer
// must have at most MaxChannels channels and a consistent buffer; the first
// violation rejects the whole stack.
func Validate(out Stack) error {
	for i, l := range out {
		if l == nil {
			return fmt.Errorf("output layer %d is nil", i)
		}

		if l.Channels > MaxChannels {
			return &ChannelLimitError{Index: i, Channels: l.Channels}
		}

		if err := l.Check(); err != nil {
			return fmt.Errorf("output layer %d: %w", i, err)
		}
	}

	return nil
}
