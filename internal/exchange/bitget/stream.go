package bitget

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsURL        = "wss://ws.bitget.com/v2/ws/public"
	wsPingPeriod = 25 * time.Second
	wsReconnect  = 5 * time.Second
)

type wsSubscription struct {
	Op   string  `json:"op"`
	Args []wsArg `json:"args"`
}

type wsArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type wsMessage struct {
	Event string `json:"event,omitempty"`
	Arg   wsArg  `json:"arg,omitempty"`
	Data  []struct {
		LastPr string `json:"lastPr"`
		Ts     string `json:"ts"`
	} `json:"data,omitempty"`
}

// StreamTicker keeps a public ticker subscription open for the symbol and
// feeds every tick into the client's cached mark price. It reconnects on
// failure and returns when the context is cancelled. Run it in its own
// goroutine; the client works without it, falling back to REST.
func (c *Client) StreamTicker(ctx context.Context, symbol string) {
	for {
		if err := c.streamOnce(ctx, symbol); err != nil {
			c.logger.Warn().Err(err).Msg("ticker stream interrupted, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wsReconnect):
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, symbol string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := wsSubscription{
		Op:   "subscribe",
		Args: []wsArg{{InstType: "SPOT", Channel: "ticker", InstID: instID(symbol)}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	c.logger.Info().Str("symbol", symbol).Msg("ticker stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// Bitget expects a literal "ping" text frame.
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if string(raw) == "pong" {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Event != "" || len(msg.Data) == 0 {
			continue
		}

		price, err := strconv.ParseFloat(msg.Data[0].LastPr, 64)
		if err != nil || price <= 0 {
			continue
		}
		c.setMark(price, time.Now())
	}
}
