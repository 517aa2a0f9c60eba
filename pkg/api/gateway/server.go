package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/meower-media/feed/pkg/feed"
	"github.com/meower-media/feed/pkg/meowid"
	"github.com/rs/cors"
)

// Options are given per connection through the query string.
type ConnectOpts struct {
	Token     string `validate:"max=4096"`
	Viewer    string `validate:"max=64"`
	ChatId    int64  `validate:"min=0"`
	AuthorId  int64  `validate:"min=0"`
	Published bool
	Drafts    bool
	Limit     int    `validate:"min=0,max=100"`
	Mode      string `validate:"omitempty,oneof=infinite paged"`
	Format    string `validate:"omitempty,oneof=json msgpack"`
}

func (o ConnectOpts) Key() feed.QueryKey {
	if o.Drafts {
		return feed.DraftsKey(o.AuthorId)
	}

	key := feed.QueryKey{
		Filter: feed.Filter{
			ChatId:    o.ChatId,
			AuthorId:  o.AuthorId,
			Published: o.Published,
			Limit:     o.Limit,
		},
		Mode: feed.ModeInfinite,
	}
	if o.Mode == "paged" {
		key.Mode = feed.ModePaged
	}
	return key
}

type Config struct {
	// Transport returns the feed transport to use on behalf of a connection.
	Transport func(opts ConnectOpts) feed.Transport

	// Authenticate, if set, resolves a connection's token to its viewer id.
	// The viewer query parameter is then ignored and connections without a
	// token are anonymous.
	Authenticate func(ctx context.Context, token string) (string, error)

	// Notifier, if set, also receives every notification for a viewer.
	Notifier func(viewerId string) feed.Notifier

	PageSize     int
	RealIPHeader string
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	sessions map[int64]*Session
	lock     sync.Mutex
}

func NewServer(cfg Config) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			CheckOrigin:       func(r *http.Request) bool { return true },
			EnableCompression: true,
		},
		sessions: make(map[int64]*Session),
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// CORS middleware
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"OPTIONS", "GET"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	// IP address middleware
	r.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.cfg.RealIPHeader != "" {
				r.RemoteAddr = r.Header.Get(s.cfg.RealIPHeader)
			} else {
				r.RemoteAddr, _, _ = net.SplitHostPort(r.RemoteAddr)
			}
			h.ServeHTTP(w, r)
		})
	})

	r.Get("/", s.connect)
	r.Get("/status", s.status)

	return r
}

func (s *Server) SessionCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.sessions)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	returnData(w, http.StatusOK, map[string]interface{}{
		"error":    false,
		"sessions": s.SessionCount(),
	})
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	// Parse and validate options
	opts, fields := parseConnectOpts(r)
	if fields != nil {
		returnErr(w, http.StatusBadRequest, ErrBadRequest, fields)
		return
	}

	// Resolve viewer
	if s.cfg.Authenticate != nil {
		opts.Viewer = ""
		if opts.Token != "" {
			viewer, err := s.cfg.Authenticate(r.Context(), opts.Token)
			if err != nil {
				returnErr(w, http.StatusUnauthorized, ErrUnauthorized, nil)
				return
			}
			opts.Viewer = viewer
		}
	}

	// Drafts belong to the viewer
	if opts.Drafts {
		authorId, err := meowid.Parse(opts.Viewer)
		if err != nil || authorId <= 0 {
			returnErr(w, http.StatusUnauthorized, ErrUnauthorized, nil)
			return
		}
		opts.AuthorId = authorId
	}

	// Upgrade connection
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	session := newSession(s, conn, opts)
	s.lock.Lock()
	s.sessions[session.id] = session
	s.lock.Unlock()

	log.Println("session", session.id, "connected from", r.RemoteAddr)
	go session.run()
}

func (s *Server) removeSession(id int64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, id)
}

func parseConnectOpts(r *http.Request) (ConnectOpts, map[string]string) {
	q := r.URL.Query()
	opts := ConnectOpts{
		Token:     q.Get("token"),
		Viewer:    q.Get("viewer"),
		Published: q.Get("published") != "false",
		Drafts:    q.Get("drafts") == "true",
		Mode:      q.Get("mode"),
		Format:    q.Get("format"),
	}

	fields := map[string]string{}
	parseInt := func(name string, dst *int64) {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				fields[name] = "not a number"
				return
			}
			*dst = n
		}
	}
	parseInt("chat", &opts.ChatId)
	parseInt("author", &opts.AuthorId)
	var limit int64
	parseInt("limit", &limit)
	opts.Limit = int(limit)

	if err := validate.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				fields[e.StructField()] = e.Error()
			}
		}
	}

	if len(fields) > 0 {
		return opts, fields
	}
	return opts, nil
}

var (
	ErrBadRequest   = errors.New("badRequest")
	ErrUnauthorized = errors.New("unauthorized")
)

type ErrResp struct {
	Error  bool              `json:"error"`
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
}

func returnData(w http.ResponseWriter, code int, data interface{}) {
	marshaled, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(marshaled)
}

func returnErr(w http.ResponseWriter, code int, errType error, fields map[string]string) {
	returnData(w, code, ErrResp{
		Error:  true,
		Type:   errType.Error(),
		Fields: fields,
	})
}
