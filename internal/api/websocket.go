package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/ponbike-core/internal/infrastructure/config"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/logging"
)

// The snapshot feed is the only thing served over /api/v1/ws. A client sends
//
//	{"type":"subscribe","id":"1","event":"snapshot.updated"}
//
// receives an ack followed by the current snapshot (if one exists), and from
// then on one "snapshot" message per successful refresh cycle.

// EventSnapshotUpdated is the single event a watcher can subscribe to.
const EventSnapshotUpdated = "snapshot.updated"

// Feed message types.
const (
	feedSubscribe   = "subscribe"
	feedUnsubscribe = "unsubscribe"
	feedPing        = "ping"
	feedPong        = "pong"
	feedAck         = "ack"
	feedError       = "error"
	feedSnapshot    = "snapshot"
)

// watcherQueueSize bounds the messages queued for one watcher. When full the
// oldest queued message is dropped; a later snapshot supersedes an earlier one.
const watcherQueueSize = 8

// feedMessage is the envelope exchanged in both directions.
type feedMessage struct {
	Type     string        `json:"type"`
	ID       string        `json:"id,omitempty"`
	Event    string        `json:"event,omitempty"`
	SentAt   time.Time     `json:"sent_at,omitzero"`
	Snapshot *snapshotView `json:"snapshot,omitempty"`
	Error    string        `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin is enforced by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// snapshotFeed fans coordinator snapshots out to connected watchers.
type snapshotFeed struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	current func() *snapshotView

	mu       sync.RWMutex
	watchers map[uuid.UUID]*watcher
}

// watcher is one WebSocket connection on the feed.
type watcher struct {
	id      uuid.UUID
	subject string // token subject from the ticket, "anonymous" when auth is off
	conn    *websocket.Conn

	out        chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	subscribed atomic.Bool
	dropped    atomic.Int64
}

// newSnapshotFeed creates a feed. current returns the snapshot sent to a
// watcher right after it subscribes, or nil when no cycle has succeeded yet.
func newSnapshotFeed(cfg config.WebSocketConfig, logger *logging.Logger, current func() *snapshotView) *snapshotFeed {
	if current == nil {
		current = func() *snapshotView { return nil }
	}
	return &snapshotFeed{
		cfg:      cfg,
		logger:   logger,
		current:  current,
		watchers: make(map[uuid.UUID]*watcher),
	}
}

func newWatcher(conn *websocket.Conn, subject string) *watcher {
	return &watcher{
		id:      uuid.New(),
		subject: subject,
		conn:    conn,
		out:     make(chan []byte, watcherQueueSize),
		done:    make(chan struct{}),
	}
}

// run closes every watcher once ctx is cancelled.
func (f *snapshotFeed) run(ctx context.Context) {
	<-ctx.Done()

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, w := range f.watchers {
		w.close()
		delete(f.watchers, id)
	}
}

func (f *snapshotFeed) add(w *watcher) {
	f.mu.Lock()
	f.watchers[w.id] = w
	n := len(f.watchers)
	f.mu.Unlock()

	f.logger.Debug("watcher connected", "watcher_id", w.id, "subject", w.subject, "watchers", n)
}

// remove detaches w from the feed. Safe to call more than once.
func (f *snapshotFeed) remove(w *watcher) {
	f.mu.Lock()
	_, ok := f.watchers[w.id]
	delete(f.watchers, w.id)
	n := len(f.watchers)
	f.mu.Unlock()

	w.close()
	if ok {
		f.logger.Debug("watcher disconnected", "watcher_id", w.id, "dropped", w.dropped.Load(), "watchers", n)
	}
}

// count returns the number of connected watchers.
func (f *snapshotFeed) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.watchers)
}

// publish queues view for every subscribed watcher and returns how many
// watchers it was queued for.
func (f *snapshotFeed) publish(view snapshotView) int {
	data, err := json.Marshal(feedMessage{
		Type:     feedSnapshot,
		Event:    EventSnapshotUpdated,
		SentAt:   time.Now().UTC(),
		Snapshot: &view,
	})
	if err != nil {
		f.logger.Error("encoding snapshot for feed", "error", err)
		return 0
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	queued := 0
	for _, w := range f.watchers {
		if w.subscribed.Load() && w.enqueue(data) {
			queued++
		}
	}
	return queued
}

// handle processes one inbound client message.
func (f *snapshotFeed) handle(w *watcher, data []byte) {
	var msg feedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.reply(w, feedMessage{Type: feedError, Error: "invalid JSON message"})
		return
	}

	switch msg.Type {
	case feedPing:
		f.reply(w, feedMessage{Type: feedPong, ID: msg.ID})

	case feedSubscribe, feedUnsubscribe:
		if msg.Event != EventSnapshotUpdated {
			f.reply(w, feedMessage{Type: feedError, ID: msg.ID, Error: "unknown event: " + msg.Event})
			return
		}
		subscribe := msg.Type == feedSubscribe
		wasSubscribed := w.subscribed.Swap(subscribe)
		f.reply(w, feedMessage{Type: feedAck, ID: msg.ID, Event: msg.Event})

		if subscribe && !wasSubscribed {
			if view := f.current(); view != nil {
				f.reply(w, feedMessage{Type: feedSnapshot, Event: EventSnapshotUpdated, Snapshot: view})
			}
		}

	default:
		f.reply(w, feedMessage{Type: feedError, ID: msg.ID, Error: "unknown message type: " + msg.Type})
	}
}

func (f *snapshotFeed) reply(w *watcher, msg feedMessage) {
	msg.SentAt = time.Now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("encoding feed reply", "error", err)
		return
	}
	w.enqueue(data)
}

// enqueue queues data without blocking, evicting the oldest queued message
// when the queue is full. It returns false once the watcher is closed.
func (w *watcher) enqueue(data []byte) bool {
	for {
		select {
		case <-w.done:
			return false
		case w.out <- data:
			return true
		default:
		}
		select {
		case <-w.out:
			w.dropped.Add(1)
		default:
		}
	}
}

func (w *watcher) close() {
	w.closeOnce.Do(func() { close(w.done) })
}

// handleWebSocket upgrades the request and attaches a watcher to the feed.
// With bearer auth enabled a one-time ticket from POST /auth/ws-ticket must
// be passed as the ticket query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	subject := "anonymous"
	if s.authEnabled() {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		entry, ok := s.tickets.consume(ticket)
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		subject = entry.subject
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	wt := newWatcher(conn, subject)
	s.feed.add(wt)

	go s.feed.writeLoop(wt)
	go s.feed.readLoop(wt)
}

// readLoop owns reads on the connection and detaches the watcher when the
// peer goes away or stops answering pings.
func (f *snapshotFeed) readLoop(w *watcher) {
	defer f.remove(w)

	deadline := time.Duration(f.cfg.PingInterval+f.cfg.PongTimeout) * time.Second
	w.conn.SetReadLimit(int64(f.cfg.MaxMessageSize))
	_ = w.conn.SetReadDeadline(time.Now().Add(deadline))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Warn("websocket read error", "watcher_id", w.id, "error", err)
			}
			return
		}
		f.handle(w, data)
	}
}

// writeLoop is the only writer on the connection. It sends queued messages
// and keepalive pings, and closes the connection when the watcher closes.
func (f *snapshotFeed) writeLoop(w *watcher) {
	ticker := time.NewTicker(time.Duration(f.cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	writeWait := time.Duration(f.cfg.PongTimeout) * time.Second
	for {
		select {
		case data := <-w.out:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				f.remove(w)
				return
			}

		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.remove(w)
				return
			}

		case <-w.done:
			//nolint:errcheck // best effort, the connection is closing
			w.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed closed"),
				time.Now().Add(writeWait))
			return
		}
	}
}
