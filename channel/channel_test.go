package channel

import (
	"fmt"
	"testing"

	"github.com/botceptor/botceptor/internal/bottest"
	"github.com/botceptor/botceptor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	svc := bottest.NewService("Welcome!", []bottest.Turn{
		{Reply: "A table for two it is.", Event: "message"},
	})
	defer svc.Close()

	url := fmt.Sprintf("ws://%s/bots/demo/sessions/s-1", svc.Host())
	client := NewClient(url)
	require.NoError(t, client.Connect())
	defer client.Close()

	assert.True(t, client.Connected())

	start := StartMessage{
		Event:     EventStart,
		SessionID: "s-1",
		MimeType:  MimeTypeText,
		Payload: StartPayload{
			Metadata: StartMetadata{RepeatedCallTimestamps: []int64{}},
			Entities: map[string]string{"mobile_number": "555-0100"},
		},
	}
	require.NoError(t, client.Send(start))

	greeting, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, "Welcome!", greeting.Payload.Text)

	ask := GenerateMessage{
		Event:     EventGenerate,
		SessionID: "s-1",
		Channel:   ChannelChat,
		MimeType:  MimeTypeText,
		Payload:   GeneratePayload{Text: "Can I book a table?"},
	}
	require.NoError(t, client.Send(ask))

	reply, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, "message", reply.Event)
	assert.Equal(t, "A table for two it is.", reply.Payload.Text)
}

func TestClientNotConnected(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	client := NewClient("ws://localhost:0/bots/demo/sessions/s-1")
	assert.False(t, client.Connected())

	err := client.Send(GenerateMessage{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	_, err = client.Receive()
	assert.Error(t, err)
}

func TestClientConnectFailure(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	client := NewClient("ws://127.0.0.1:1/bots/demo/sessions/s-1")
	err := client.Connect()
	assert.Error(t, err)
	assert.False(t, client.Connected())
}

func TestClientCloseIdempotent(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	// Safe on a client that never connected.
	client := NewClient("ws://localhost:0/whatever")
	client.Close()
	client.Close()

	svc := bottest.NewService("hi", nil)
	defer svc.Close()

	connected := NewClient(fmt.Sprintf("ws://%s/bots/demo/sessions/s-2", svc.Host()))
	require.NoError(t, connected.Connect())

	connected.Close()
	assert.False(t, connected.Connected())
	connected.Close()
}
