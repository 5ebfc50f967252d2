package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrBadEnvelope = errors.New("protocol: bad envelope")

// Envelope 统一外层：t 为事件名，p 为原始负载字节
type Envelope struct {
	T string
	P []byte
}

// Codec 负责外层与负载的编解码
type Codec interface {
	Name() string
	// FrameType websocket 帧类型（文本或二进制）
	FrameType() int
	Encode(t string, payload any) ([]byte, error)
	Decode(b []byte) (Envelope, error)
	Unmarshal(env Envelope, out any) error
}

// CodecByName json（默认）或 msgpack
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown codec %q", name)
	}
}

// DecodePayload 解码外层中的负载为指定类型
func DecodePayload[T any](c Codec, env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("%w: empty payload for type %q", ErrBadEnvelope, env.T)
	}
	err := c.Unmarshal(env, &out)
	return out, err
}

type jsonEnvelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// JSONCodec 文本帧：{"t":"move","p":{...}}
type JSONCodec struct{}

func (JSONCodec) Name() string   { return "json" }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("%w: empty type", ErrBadEnvelope)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrBadEnvelope)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonEnvelope{T: t, P: pb})
}

func (JSONCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: zero-length frame", ErrBadEnvelope)
	}
	var e jsonEnvelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if e.T == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrBadEnvelope)
	}
	return Envelope{T: e.T, P: e.P}, nil
}

func (JSONCodec) Unmarshal(env Envelope, out any) error {
	return json.Unmarshal(env.P, out)
}

type msgpackEnvelope struct {
	T string             `msgpack:"t"`
	P msgpack.RawMessage `msgpack:"p"`
}

// MsgpackCodec 二进制帧，字段与 JSON 保持同名
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string   { return "msgpack" }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("%w: empty type", ErrBadEnvelope)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrBadEnvelope)
	}
	pb, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&msgpackEnvelope{T: t, P: pb})
}

func (MsgpackCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: zero-length frame", ErrBadEnvelope)
	}
	var e msgpackEnvelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if e.T == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrBadEnvelope)
	}
	return Envelope{T: e.T, P: e.P}, nil
}

func (MsgpackCodec) Unmarshal(env Envelope, out any) error {
	return msgpack.Unmarshal(env.P, out)
}
