package gateway

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	FormatJSON    int8 = 0
	FormatMsgpack int8 = 1
)

var validate = validator.New()

var (
	ErrBadPacket  = errors.New("badPacket")
	ErrUnknownCmd = errors.New("unknownCmd")
)

// Packet is an outbound message.
type Packet struct {
	Cmd   string      `json:"cmd" msgpack:"cmd"`
	Val   interface{} `json:"val,omitempty" msgpack:"val,omitempty"`
	Nonce int64       `json:"nonce,omitempty" msgpack:"nonce,omitempty"`
}

type jsonInPacket struct {
	Cmd string          `json:"cmd"`
	Val json.RawMessage `json:"val"`
}

type msgpackInPacket struct {
	Cmd string             `msgpack:"cmd"`
	Val msgpack.RawMessage `msgpack:"val"`
}

type HelloVal struct {
	SessionId    string `json:"session_id" msgpack:"session_id"`
	Feed         string `json:"feed" msgpack:"feed"`
	PingInterval int    `json:"ping_interval" msgpack:"ping_interval"`
}

type ScrollVal struct {
	Fraction *float64 `json:"fraction" msgpack:"fraction" validate:"required,min=0,max=100"`
}

type PostVal struct {
	PostId string `json:"post_id" msgpack:"post_id" validate:"required,max=64"`
}

type NotifyVal struct {
	Kind    string `json:"kind" msgpack:"kind"`
	Message string `json:"message" msgpack:"message"`
}

type ErrorVal struct {
	Type    string `json:"type" msgpack:"type"`
	PostId  string `json:"post_id,omitempty" msgpack:"post_id,omitempty"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
}

func encodePacket(format int8, p *Packet) ([]byte, error) {
	if format == FormatMsgpack {
		return msgpack.Marshal(p)
	}
	return json.Marshal(p)
}

// decodePacket returns the packet's command and a function that decodes and
// validates its value.
func decodePacket(format int8, data []byte) (string, func(v interface{}) error, error) {
	if format == FormatMsgpack {
		var p msgpackInPacket
		if err := msgpack.Unmarshal(data, &p); err != nil {
			return "", nil, ErrBadPacket
		}
		return p.Cmd, func(v interface{}) error {
			if len(p.Val) == 0 {
				return ErrBadPacket
			}
			if err := msgpack.Unmarshal(p.Val, v); err != nil {
				return ErrBadPacket
			}
			return validate.Struct(v)
		}, nil
	}

	var p jsonInPacket
	if err := json.Unmarshal(data, &p); err != nil {
		return "", nil, ErrBadPacket
	}
	return p.Cmd, func(v interface{}) error {
		if len(p.Val) == 0 {
			return ErrBadPacket
		}
		if err := json.Unmarshal(p.Val, v); err != nil {
			return ErrBadPacket
		}
		return validate.Struct(v)
	}, nil
}
