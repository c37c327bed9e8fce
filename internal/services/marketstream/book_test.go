package marketstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteBook(t *testing.T) {
	b := NewQuoteBook()
	b.Apply("aapl", 100, 10)
	b.Apply("AAPL", 103, 5)
	b.Apply("AAPL", 0, 99)

	q, err := b.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 103.0, q.Price)
	assert.InDelta(t, 3.0, q.ChangePct, 1e-9)
	assert.Equal(t, 15.0, q.Volume)

	_, err = b.Quote(context.Background(), "MSFT")
	assert.ErrorIs(t, err, models.ErrUnknownSymbol)
}

func TestClientFeedsBook(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		select {
		case subscribed <- sub["symbol"]:
		default:
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"NVDA","p":500,"v":2,"t":1},{"s":"NVDA","p":510,"v":3,"t":2}]}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	book := NewQuoteBook()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New("k", wsURL, []string{"NVDA"}, 50*time.Millisecond, time.Second, book, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	select {
	case s := <-subscribed:
		assert.Equal(t, "NVDA", s)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription received")
	}

	require.Eventually(t, func() bool {
		q, err := book.Quote(context.Background(), "NVDA")
		return err == nil && q.Price == 510
	}, 2*time.Second, 10*time.Millisecond)

	q, _ := book.Quote(context.Background(), "NVDA")
	assert.InDelta(t, 2.0, q.ChangePct, 1e-9)
	assert.Equal(t, 5.0, q.Volume)
}
