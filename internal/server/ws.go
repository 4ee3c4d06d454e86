package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"token-ledger/internal/domain"
	"token-ledger/internal/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
)

var errEventFeedClosed = errors.New("event feed closed")

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEventFeed upgrades the connection and streams journal events
// as JSON frames. With ?after=N the feed replays the journal past seq
// N before going live, so a reconnecting client misses nothing.
func (s *Server) handleEventFeed(w http.ResponseWriter, r *http.Request) {
	afterRaw := r.URL.Query().Get("after")
	catchUp := afterRaw != ""
	after, err := queryUint(r, "after", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Subscribing before the replay read closes the gap between the
	// journal tail and the live stream.
	sub := s.bus.Subscribe()
	if sub == nil {
		writeError(w, http.StatusServiceUnavailable, errEventFeedClosed)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		s.logger.Printf("[server] websocket upgrade failed: %v", err)
		return
	}

	// Served on the handler goroutine so the request context stays
	// alive for journal reads.
	s.serveEventFeed(r.Context(), conn, sub, after, catchUp)
}

func (s *Server) serveEventFeed(ctx context.Context, conn *websocket.Conn, sub *events.Subscription, after uint64, catchUp bool) {
	defer conn.Close()
	defer sub.Close()

	// The read side only services pongs and close frames.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastSent uint64
	if catchUp {
		sent, err := s.replayJournal(ctx, conn, after)
		if err != nil {
			s.logger.Printf("[server] event replay ended: %v", err)
			return
		}
		lastSent = sent
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				s.writeClose(conn, websocket.CloseNormalClosure)
				return
			}
			// Events already sent during replay show up again on the
			// live stream; the journal copy wins.
			if catchUp && ev.Seq <= lastSent {
				continue
			}
			if err := s.writeEvent(conn, ev); err != nil {
				return
			}
			lastSent = ev.Seq
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}

// replayJournal streams journal events with seq > after and returns
// the last seq written.
func (s *Server) replayJournal(ctx context.Context, conn *websocket.Conn, after uint64) (uint64, error) {
	cursor := after
	for {
		evs, err := s.ledger.Events(ctx, cursor, maxEventLimit)
		if err != nil {
			return cursor, err
		}
		for _, ev := range evs {
			if err := s.writeEvent(conn, *ev); err != nil {
				return cursor, err
			}
			cursor = ev.Seq
		}
		if len(evs) < maxEventLimit {
			return cursor, nil
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev domain.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}

func (s *Server) writeClose(conn *websocket.Conn, code int) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
}
