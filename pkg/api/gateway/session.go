package gateway

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meower-media/feed/pkg/feed"
	"github.com/meower-media/feed/pkg/meowid"
	"github.com/meower-media/feed/pkg/notify"
	"github.com/meower-media/feed/pkg/structs"
)

const pingInterval = 45_000 // 45 seconds

// Session is one websocket connection and the feed it renders. Every session
// owns its own cache store.
type Session struct {
	id     int64
	server *Server
	conn   *websocket.Conn
	format int8

	store *feed.Store
	feed  *feed.Feed

	send  chan *Packet
	dirty chan struct{}
	done  chan struct{}
}

func newSession(server *Server, conn *websocket.Conn, opts ConnectOpts) *Session {
	s := &Session{
		id:     meowid.GenId(),
		server: server,
		conn:   conn,
		store:  feed.NewStore(),

		send:  make(chan *Packet, 256),
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	if opts.Format == "msgpack" {
		s.format = FormatMsgpack
	}

	// Notifications go to this socket and to whatever else is configured
	notifier := notify.Multi{
		feed.NotifierFunc(func(kind string, message string) {
			s.write(&Packet{Cmd: "notify", Val: NotifyVal{Kind: kind, Message: message}})
		}),
	}
	if server.cfg.Notifier != nil && opts.Viewer != "" {
		notifier = append(notifier, server.cfg.Notifier(opts.Viewer))
	}

	s.feed = feed.New(feed.Config{
		Store:     s.store,
		Key:       opts.Key(),
		Transport: server.cfg.Transport(opts),
		Auth:      feed.StaticAuth(opts.Viewer),
		Notifier:  notifier,
		PageSize:  server.cfg.PageSize,
		OnError: func(err error) {
			s.writeErr(err, "")
		},
	})

	// Re-render on every cache change
	s.store.Subscribe(func(feed.QueryKey, feed.FeedCache) {
		s.markDirty()
	})

	return s
}

func (s *Session) run() {
	defer s.end()

	go s.writeLoop()

	// Send hello
	s.write(&Packet{
		Cmd: "hello",
		Val: HelloVal{
			SessionId:    strconv.FormatInt(s.id, 10),
			Feed:         s.feed.Key().Hash(),
			PingInterval: pingInterval,
		},
	})

	// Load first page. Fetches and mutations outlive the socket; once the feed
	// is unmounted their results are dropped.
	if err := s.feed.Mount(context.Background()); err != nil {
		s.writeErr(err, "")
	}
	s.markDirty()

	// Read incoming packets until the connection ends
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("session", s.id, err)
			}
			return
		}

		format := FormatJSON
		if msgType == websocket.BinaryMessage {
			format = FormatMsgpack
		}
		s.handle(format, msg)
	}
}

func (s *Session) handle(format int8, msg []byte) {
	cmd, decodeVal, err := decodePacket(format, msg)
	if err != nil {
		s.writeErr(err, "")
		return
	}

	switch cmd {
	case "ping":
		s.write(&Packet{Cmd: "pong"})

	case "scroll":
		var val ScrollVal
		if err := decodeVal(&val); err != nil {
			s.writeErr(ErrBadPacket, "")
			return
		}
		s.feed.ScrollTo(*val.Fraction)

	case "like", "unlike", "toggle":
		var val PostVal
		if err := decodeVal(&val); err != nil {
			s.writeErr(ErrBadPacket, "")
			return
		}
		go s.mutate(cmd, val.PostId)

	case "next_page":
		go func() {
			if err := s.feed.NextPage(context.Background()); err != nil {
				s.writeErr(err, "")
			}
			s.markDirty()
		}()

	case "prev_page":
		if err := s.feed.PrevPage(); err != nil {
			s.writeErr(err, "")
		}
		s.markDirty()

	case "retry":
		go func() {
			err := s.feed.Retry(context.Background())
			if err != nil && !errors.Is(err, feed.ErrFetchInFlight) {
				s.writeErr(err, "")
			}
		}()

	case "render":
		s.markDirty()

	default:
		s.writeErr(ErrUnknownCmd, "")
	}
}

func (s *Session) mutate(cmd string, postId string) {
	ctx := context.Background()
	var err error
	switch cmd {
	case "like":
		err = s.feed.Like(ctx, postId)
	case "unlike":
		err = s.feed.Unlike(ctx, postId)
	default:
		err = s.feed.Toggle(ctx, postId)
	}
	if err != nil {
		s.writeErr(err, postId)
	}

	// The pending flag clears after the last patch
	s.markDirty()
}

func (s *Session) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Session) write(p *Packet) {
	select {
	case s.send <- p:
	case <-s.done:
	}
}

func (s *Session) writeErr(err error, postId string) {
	val := ErrorVal{PostId: postId, Message: err.Error()}

	var fetchErr *feed.FetchError
	var mutationErr *feed.MutationError
	switch {
	case errors.As(err, &fetchErr):
		val.Type = "fetchFailed"
	case errors.As(err, &mutationErr):
		val.Type = "mutationFailed"
	case errors.Is(err, feed.ErrMutationPending):
		val.Type = "mutationPending"
	case errors.Is(err, feed.ErrNoViewer):
		val.Type = "unauthorized"
	case errors.Is(err, feed.ErrNoNextPage):
		val.Type = "noNextPage"
	case errors.Is(err, feed.ErrNoPrevPage):
		val.Type = "noPrevPage"
	case errors.Is(err, feed.ErrFetchInFlight):
		val.Type = "fetchInFlight"
	case errors.Is(err, ErrBadPacket), errors.Is(err, ErrUnknownCmd):
		val.Type = err.Error()
	default:
		val.Type = "internal"
	}

	s.write(&Packet{Cmd: "error", Val: val})
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(time.Millisecond * pingInterval)
	defer ticker.Stop()

	var nonce int64
	for {
		// Queued packets go out before renders
		var p *Packet
		select {
		case p = <-s.send:
		default:
			select {
			case <-s.done:
				return
			case p = <-s.send:
			case <-s.dirty:
				p = &Packet{Cmd: "feed", Val: structs.ConstructFeedPageV0(s.feed)}
			case <-ticker.C:
				if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					s.conn.Close()
					return
				}
				continue
			}
		}

		nonce++
		p.Nonce = nonce
		marshaled, err := encodePacket(s.format, p)
		if err != nil {
			log.Println(err)
			continue
		}

		msgType := websocket.TextMessage
		if s.format == FormatMsgpack {
			msgType = websocket.BinaryMessage
		}
		if err := s.conn.WriteMessage(msgType, marshaled); err != nil {
			s.conn.Close()
			return
		}
	}
}

func (s *Session) end() {
	close(s.done)
	s.feed.Unmount()
	s.store.Close()
	s.conn.Close()
	s.server.removeSession(s.id)
	log.Println("session", s.id, "ended")
}
