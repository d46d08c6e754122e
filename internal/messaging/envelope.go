package messaging

import (
	"fmt"

	"dchat/internal/domain"

	"github.com/vmihailenco/msgpack/v5"
)

// The broker envelope is a field-name based msgpack map, so producer and
// consumer versions can evolve independently: unknown fields on receipt are
// ignored, missing required fields fail the whole decode.

// EncodeEnvelope serializes a MessageView for the fanout exchange.
func EncodeEnvelope(view *domain.MessageView) ([]byte, error) {
	body, err := msgpack.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return body, nil
}

// DecodeEnvelope deserializes a broker envelope. An envelope without its
// required fields is treated as corrupt; html alone may legitimately be
// empty (whitespace-only text renders to nothing) and is not required.
func DecodeEnvelope(body []byte) (*domain.MessageView, error) {
	view := &domain.MessageView{}
	if err := msgpack.Unmarshal(body, view); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch {
	case view.Room == "":
		return nil, fmt.Errorf("corrupt envelope: missing room")
	case view.ID <= 0:
		return nil, fmt.Errorf("corrupt envelope: missing id")
	case view.SenderID == "":
		return nil, fmt.Errorf("corrupt envelope: missing sender id")
	case view.SenderDisplayName == "":
		return nil, fmt.Errorf("corrupt envelope: missing sender display name")
	case view.Timestamp == 0:
		return nil, fmt.Errorf("corrupt envelope: missing timestamp")
	}

	return view, nil
}
