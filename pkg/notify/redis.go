package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const OpNotify uint8 = 0x1

type Notification struct {
	ViewerId  string `msgpack:"viewer"`
	Kind      string `msgpack:"kind"`
	Message   string `msgpack:"message"`
	CreatedAt int64  `msgpack:"t"`
}

// Redis publishes notifications for a viewer so that every instance holding
// one of their sockets can show them.
type Redis struct {
	Client   *redis.Client
	ViewerId string
}

func Channel(viewerId string) string {
	return fmt.Sprint("n", viewerId)
}

// Encode marshals a notification and appends its op byte.
func Encode(n *Notification) ([]byte, error) {
	marshaled, err := msgpack.Marshal(n)
	if err != nil {
		return nil, err
	}
	return append(marshaled, OpNotify), nil
}

func Decode(payload []byte) (*Notification, error) {
	if len(payload) == 0 || payload[len(payload)-1] != OpNotify {
		return nil, fmt.Errorf("not a notification packet")
	}
	var n Notification
	if err := msgpack.Unmarshal(payload[:len(payload)-1], &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r Redis) Notify(kind string, message string) {
	marshaled, err := Encode(&Notification{
		ViewerId:  r.ViewerId,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Println(err)
		sentry.CaptureException(err)
		return
	}

	// Fire and forget
	go func() {
		if err := r.Client.Publish(context.Background(), Channel(r.ViewerId), marshaled).Err(); err != nil {
			log.Println(err)
		}
	}()
}
