package live

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"net/http"
	"net/http/httptest"
)

func TestOrderUpdateStreamReceivesTradeUpdatesAndSkipsOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer c.Close(websocket.StatusNormalClosure, "")

		ctx := context.Background()
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"stream":"heartbeat"}`))
		_ = c.Write(ctx, websocket.MessageText, []byte(
			`{"stream":"trade_updates","order":{"id":"o-1","status":"filled","filled_qty":0,"filled_avg_price":0}}`,
		))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	s := NewOrderUpdateStream(wsURL, zerolog.Nop())
	require.NoError(t, s.Dial(context.Background()))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg) // heartbeat, skipped

	msg, err = s.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "trade_updates", msg.Stream)
	require.NotNil(t, msg.Order)
	assert.Equal(t, "o-1", msg.Order.ID)
}

func TestReconnectDelayCapsAtMax(t *testing.T) {
	assert.Equal(t, baseReconnectDelay, ReconnectDelay(1))
	assert.Equal(t, maxReconnectDelay, ReconnectDelay(20))
}
