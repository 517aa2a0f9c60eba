package notify

import (
	"testing"

	"github.com/meower-media/feed/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	n := &Notification{ViewerId: "u1", Kind: feed.NotifyLiked, Message: "You liked this post", CreatedAt: 1700000000000}
	payload, err := Encode(n)
	require.NoError(t, err)
	assert.Equal(t, OpNotify, payload[len(payload)-1])

	got, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, n, got)

	_, err = Decode([]byte{})
	assert.Error(t, err)
	_, err = Decode([]byte{0x90, 0x7})
	assert.Error(t, err)
}

func TestMulti(t *testing.T) {
	got := []string{}
	m := Multi{
		feed.NotifierFunc(func(kind, message string) { got = append(got, "a:"+kind) }),
		nil,
		feed.NotifierFunc(func(kind, message string) { got = append(got, "b:"+kind) }),
	}
	m.Notify(feed.NotifyUnliked, "You unliked this post")
	assert.Equal(t, []string{"a:unliked", "b:unliked"}, got)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "nu1", Channel("u1"))
}
