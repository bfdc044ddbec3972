// Package testutil provides testing utilities for the tiered cache.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrMockFailure is returned for entities configured to fail.
var ErrMockFailure = errors.New("mock synthesis failure")

// Profile is a small artifact used by tests.
type Profile struct {
	Entity  string            `json:"entity"`
	Level   string            `json:"level"`
	Payload string            `json:"payload"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// MockSynthesizer is a configurable synthesizer for testing.
type MockSynthesizer struct {
	mu       sync.Mutex
	failures map[string]error
	sizes    map[string]int
	calls    map[string]int

	// Delay is applied to every call (respecting context cancellation)
	Delay time.Duration

	// PayloadSize is the default payload length in bytes
	PayloadSize int

	// Gate, when set, blocks every call until it is closed
	Gate chan struct{}
}

// NewMockSynthesizer creates a mock that succeeds for every entity.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{
		failures:    make(map[string]error),
		sizes:       make(map[string]int),
		calls:       make(map[string]int),
		PayloadSize: 16,
	}
}

// FailFor makes calls for entity return err (ErrMockFailure when nil).
func (m *MockSynthesizer) FailFor(entity string, err error) {
	if err == nil {
		err = ErrMockFailure
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[entity] = err
}

// SizeFor sets the payload length for entity.
func (m *MockSynthesizer) SizeFor(entity string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[entity] = n
}

// Synthesize builds a Profile whose payload is a run of 'x' bytes.
func (m *MockSynthesizer) Synthesize(ctx context.Context, entity string) (Profile, error) {
	m.mu.Lock()
	m.calls[entity]++
	failure := m.failures[entity]
	size, ok := m.sizes[entity]
	if !ok {
		size = m.PayloadSize
	}
	gate := m.Gate
	delay := m.Delay
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Profile{}, ctx.Err()
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Profile{}, ctx.Err()
		}
	}

	if failure != nil {
		return Profile{}, failure
	}

	return Profile{
		Entity:  entity,
		Level:   "detailed",
		Payload: strings.Repeat("x", size),
	}, nil
}

// Calls returns how many times entity was synthesized.
func (m *MockSynthesizer) Calls(entity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[entity]
}

// TotalCalls returns the number of calls across all entities.
func (m *MockSynthesizer) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// RawCodec stores a Profile's payload verbatim so encoded sizes are exact.
// Decode fails for data that does not start with the "raw:" marker.
type RawCodec struct{}

// Encode returns "raw:" followed by the payload.
func (RawCodec) Encode(p Profile) ([]byte, error) {
	return []byte("raw:" + p.Entity + "|" + p.Payload), nil
}

// Decode reverses Encode.
func (RawCodec) Decode(data []byte) (Profile, error) {
	s, ok := strings.CutPrefix(string(data), "raw:")
	if !ok {
		return Profile{}, errors.New("missing raw marker")
	}
	entity, payload, _ := strings.Cut(s, "|")
	return Profile{Entity: entity, Level: "detailed", Payload: payload}, nil
}

// EncodedSize returns the length RawCodec produces for entity with n payload bytes.
func EncodedSize(entity string, n int) int {
	return len("raw:") + len(entity) + 1 + n
}
