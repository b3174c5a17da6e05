package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements a MarketStream backed by the Binance kline WebSocket.
// Every bar update is emitted; the store collapses them by open time.
type Stream struct {
	url      string
	symbols  []string
	interval drepo.Interval

	conn      *websocket.Conn
	connected bool

	reconnectDelay time.Duration
	pingInterval   time.Duration
}

// NewStream creates a new Binance MarketStream.
func NewStream(websocketURL string, symbols []string, interval drepo.Interval, reconnectDelay, pingInterval time.Duration) drepo.MarketStream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	s := &Stream{url: websocketURL, symbols: symbols, interval: interval}
	s.reconnectDelay, s.pingInterval = reconnectDelay, pingInterval
	return s
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	log.Printf("binance: stream connected")
	return nil
}

// Subscribe subscribes to the kline stream of every configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("binance not connected")
	}
	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.interval))
	}
	req := map[string]interface{}{"method": "SUBSCRIBE", "params": params, "id": 1}
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe klines: %w", err)
	}
	log.Printf("binance: subscribed %s", strings.Join(params, ","))
	return nil
}

type wsKline struct {
	T int64  `json:"t"` // open time ms
	S string `json:"s"`
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V string `json:"v"`
	X bool   `json:"x"` // bar closed
}

type wsEvent struct {
	Event string  `json:"e"`
	K     wsKline `json:"k"`
}

// Read streams Candle updates and errors. Both channels close when the
// read loop exits; the caller decides whether to Reconnect.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	candles := make(chan *models.Candle, 1024)
	errs := make(chan error, 1)

	go s.keepAlive(ctx)
	go s.readFrames(ctx, candles, errs)

	return candles, errs
}

// keepAlive pings the peer so idle connections are not reaped.
func (s *Stream) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.conn != nil {
			_ = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (s *Stream) readFrames(ctx context.Context, candles chan<- *models.Candle, errs chan<- error) {
	defer close(candles)
	defer close(errs)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.conn == nil {
			errs <- fmt.Errorf("binance conn nil")
			return
		}
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			errs <- fmt.Errorf("binance read: %w", err)
			return
		}
		deliver(frame, candles)
	}
}

// deliver parses one frame and forwards the bar, dropping it when the
// channel is full.
func deliver(frame []byte, candles chan<- *models.Candle) {
	var ev wsEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		// subscribe acks and other non-kline frames
		return
	}
	if ev.Event != "kline" {
		return
	}
	candle, ok := klineToCandle(ev.K)
	if !ok {
		return
	}
	select {
	case candles <- candle:
	default:
	}
}

func klineToCandle(k wsKline) (*models.Candle, bool) {
	if k.S == "" || k.T <= 0 {
		return nil, false
	}
	vals := make([]float64, 5)
	for i, s := range []string{k.O, k.H, k.L, k.C, k.V} {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		vals[i] = f
	}
	return &models.Candle{
		OpenTime: time.UnixMilli(k.T).UTC(),
		Symbol:   k.S,
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, true
}

// Reconnect tears the connection down and dials again after the
// configured delay.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	log.Printf("binance: reconnecting in %s", s.reconnectDelay)
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close marks the stream disconnected and closes the socket.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// IsConnected reports whether the last Connect succeeded and Close has
// not been called since.
func (s *Stream) IsConnected() bool { return s.connected }
