package notify

import (
	"log"

	"github.com/meower-media/feed/pkg/feed"
)

// Log prints user feedback to the standard logger.
type Log struct {
	Prefix string
}

func (l Log) Notify(kind string, message string) {
	log.Println(l.Prefix+"["+kind+"]", message)
}

// Multi sends every notification to each notifier in order.
type Multi []feed.Notifier

func (m Multi) Notify(kind string, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(kind, message)
		}
	}
}
