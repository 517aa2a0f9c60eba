package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/meower-media/feed/pkg/api/gateway"
	"github.com/meower-media/feed/pkg/db"
	"github.com/meower-media/feed/pkg/feed"
	"github.com/meower-media/feed/pkg/meowid"
	"github.com/meower-media/feed/pkg/notify"
	"github.com/meower-media/feed/pkg/rdb"
	"github.com/meower-media/feed/pkg/sessions"
	"github.com/meower-media/feed/pkg/transport/mongo"
	"github.com/meower-media/feed/pkg/transport/rest"
)

func main() {
	// Load dotenv
	godotenv.Load()

	// Init Sentry
	if err := sentry.Init(sentry.ClientOptions{
		Dsn: os.Getenv("SENTRY_DSN"),
	}); err != nil {
		panic(err)
	}
	defer sentry.Flush(time.Second * 5)

	// Init MeowID
	if err := meowid.Init(os.Getenv("NODE_ID")); err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	cfg := gateway.Config{
		RealIPHeader: os.Getenv("REAL_IP_HEADER"),
	}
	if v := os.Getenv("FEED_PAGE_SIZE"); v != "" {
		pageSize, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		cfg.PageSize = pageSize
	}

	// Pick the transport. MongoDB is read directly when configured, otherwise
	// requests go through the REST API with the connection's token.
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		if err := db.Init(ctx, uri, os.Getenv("MONGO_DB")); err != nil {
			panic(err)
		}
		defer db.Close(context.Background())

		// Init session signing key
		if err := sessions.InitSigningKey(ctx); err != nil {
			panic(err)
		}

		// Viewers are taken from verified session tokens only
		cfg.Authenticate = func(ctx context.Context, token string) (string, error) {
			userId, err := sessions.Verify(ctx, token)
			if err != nil {
				log.Println(err)
				if !errors.Is(err, sessions.ErrTokenExpired) && !errors.Is(err, sessions.ErrSessionNotFound) {
					sentry.CaptureException(err)
				}
				return "", err
			}
			return meowid.String(userId), nil
		}
		cfg.Transport = func(opts gateway.ConnectOpts) feed.Transport {
			viewerId, _ := meowid.Parse(opts.Viewer)
			return mongo.New(viewerId)
		}
	} else {
		apiURL := os.Getenv("FEED_API_URL")
		if apiURL == "" {
			apiURL = "http://127.0.0.1:3001"
		}
		cfg.Transport = func(opts gateway.ConnectOpts) feed.Transport {
			return rest.NewClient(apiURL, opts.Token)
		}
	}

	// Fan notifications out over Redis when configured
	if uri := os.Getenv("REDIS_URI"); uri != "" {
		if err := rdb.Init(ctx, uri); err != nil {
			panic(err)
		}
		defer rdb.Close()

		cfg.Notifier = func(viewerId string) feed.Notifier {
			return notify.Multi{
				notify.Log{Prefix: viewerId + " "},
				notify.Redis{Client: rdb.Client, ViewerId: viewerId},
			}
		}
	} else {
		cfg.Notifier = func(viewerId string) feed.Notifier {
			return notify.Log{Prefix: viewerId + " "}
		}
	}

	// Serve HTTP router
	addr := os.Getenv("GATEWAY_ADDRESS")
	if addr == "" {
		addr = ":3000"
	}
	server := gateway.NewServer(cfg)
	log.Println("Serving gateway on " + addr)
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Println(err)
	}
}
