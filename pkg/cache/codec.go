package cache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec converts artifacts to and from their stored byte form.
// Decode(Encode(a)) must be semantically equal to a.
type Codec[A any] interface {
	Encode(a A) ([]byte, error)
	Decode(data []byte) (A, error)
}

// JSONCodec stores artifacts as JSON documents.
type JSONCodec[A any] struct{}

// Encode marshals a to JSON.
func (JSONCodec[A]) Encode(a A) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

// Decode unmarshals a JSON document into a new artifact.
func (JSONCodec[A]) Decode(data []byte) (A, error) {
	var a A
	if err := json.Unmarshal(data, &a); err != nil {
		var zero A
		return zero, fmt.Errorf("json decode: %w", err)
	}
	return a, nil
}

// maxDecodedBytes caps zstd output so a corrupt frame cannot exhaust memory.
const maxDecodedBytes = 256 << 20

// ZstdCodec compresses the output of an inner codec with zstd.
// It is safe for concurrent use.
type ZstdCodec[A any] struct {
	inner   Codec[A]
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec wraps inner with zstd compression at the given level.
func NewZstdCodec[A any](inner Codec[A], level zstd.EncoderLevel) (*ZstdCodec[A], error) {
	if inner == nil {
		return nil, fmt.Errorf("inner codec cannot be nil")
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedBytes))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &ZstdCodec[A]{
		inner:   inner,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Encode serializes a with the inner codec and compresses the result.
func (c *ZstdCodec[A]) Encode(a A) ([]byte, error) {
	raw, err := c.inner.Encode(a)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode decompresses data and deserializes it with the inner codec.
func (c *ZstdCodec[A]) Decode(data []byte) (A, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		var zero A
		return zero, fmt.Errorf("zstd decode: %w", err)
	}
	return c.inner.Decode(raw)
}

// Close releases the encoder and decoder resources.
func (c *ZstdCodec[A]) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}
