package messaging

import (
	"testing"

	"dchat/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEnvelope_Roundtrip(t *testing.T) {
	view := &domain.MessageView{
		Room:              "lobby",
		ID:                42,
		SenderID:          "user-1",
		SenderDisplayName: "Alice",
		HTML:              `<span>hello</span>`,
		Timestamp:         1700000000123,
	}

	body, err := EncodeEnvelope(view)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, view, decoded)
}

func TestDecodeEnvelope_EmptyHTMLIsValid(t *testing.T) {
	// Whitespace-only text renders to empty html; the envelope must still
	// be accepted.
	view := &domain.MessageView{
		Room:              "lobby",
		ID:                1,
		SenderID:          "user-1",
		SenderDisplayName: "user-1",
		HTML:              "",
		Timestamp:         1,
	}

	body, err := EncodeEnvelope(view)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Empty(t, decoded.HTML)
}

func TestDecodeEnvelope_IgnoresUnknownFields(t *testing.T) {
	body, err := msgpack.Marshal(map[string]interface{}{
		"room":                "lobby",
		"id":                  int64(7),
		"sender_id":           "user-1",
		"sender_display_name": "Alice",
		"html":                "<span>x</span>",
		"timestamp":           int64(123),
		"some_future_field":   "ignored",
	})
	require.NoError(t, err)

	view, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, int64(7), view.ID)
	assert.Equal(t, "Alice", view.SenderDisplayName)
}

func TestDecodeEnvelope_MissingFieldsAreCorrupt(t *testing.T) {
	complete := map[string]interface{}{
		"room":                "lobby",
		"id":                  int64(7),
		"sender_id":           "user-1",
		"sender_display_name": "Alice",
		"timestamp":           int64(123),
	}

	for _, missing := range []string{"room", "id", "sender_id", "sender_display_name", "timestamp"} {
		t.Run("missing_"+missing, func(t *testing.T) {
			envelope := make(map[string]interface{}, len(complete))
			for k, v := range complete {
				if k != missing {
					envelope[k] = v
				}
			}

			body, err := msgpack.Marshal(envelope)
			require.NoError(t, err)

			_, err = DecodeEnvelope(body)
			assert.Error(t, err)
		})
	}
}

func TestDecodeEnvelope_GarbageBytes(t *testing.T) {
	_, err := DecodeEnvelope([]byte{0xc1, 0xff, 0x00})
	assert.Error(t, err)
}
