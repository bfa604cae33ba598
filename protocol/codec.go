// Package protocol defines the wire format between rooms and clients: the
// {t, p} envelope, its JSON and msgpack encodings, and the full/delta state
// stream with its client-side mirror.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes envelopes and payloads. A connection picks one codec for
// its whole lifetime.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages.
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
	wrap(t string, payload []byte) ([]byte, error)
	unwrap(b []byte) (Envelope, error)
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// CodecByName resolves "json" (also the empty string) or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type Envelope struct {
	T string
	P []byte // raw payload bytes in the codec's encoding
}

func Encode(c Codec, t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("trying to encode envelope type nil")
	}
	if payload == nil {
		return nil, fmt.Errorf("trying to encode nil payload")
	}
	pb, err := c.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.wrap(t, pb)
}

func DecodeEnvelope(c Codec, b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode envelope: empty message")
	}
	return c.unwrap(b)
}

func DecodePayload[T any](c Codec, env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	err := c.Unmarshal(env.P, &out)
	return out, err
}

type jsonCodec struct{}

type jsonEnvelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

func (jsonCodec) Name() string                    { return "json" }
func (jsonCodec) Binary() bool                    { return false }
func (jsonCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

func (jsonCodec) wrap(t string, p []byte) ([]byte, error) {
	return json.Marshal(jsonEnvelope{T: t, P: p})
}

func (jsonCodec) unwrap(b []byte) (Envelope, error) {
	var e jsonEnvelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	return Envelope{T: e.T, P: e.P}, nil
}

type msgpackCodec struct{}

type msgpackEnvelope struct {
	T string             `msgpack:"t"`
	P msgpack.RawMessage `msgpack:"p"`
}

func (msgpackCodec) Name() string                    { return "msgpack" }
func (msgpackCodec) Binary() bool                    { return true }
func (msgpackCodec) Marshal(v any) ([]byte, error)   { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(b []byte, v any) error { return msgpack.Unmarshal(b, v) }

func (msgpackCodec) wrap(t string, p []byte) ([]byte, error) {
	return msgpack.Marshal(msgpackEnvelope{T: t, P: p})
}

func (msgpackCodec) unwrap(b []byte) (Envelope, error) {
	var e msgpackEnvelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	return Envelope{T: e.T, P: e.P}, nil
}
