// Package profile synthesizes demo profiles for the cache server. The content
// is generated from the entity key and carries no meaning of its own.
package profile

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Profile is the artifact served by the cache server.
type Profile struct {
	Entity      string            `json:"entity"`
	Level       string            `json:"level"`
	DisplayName string            `json:"display_name"`
	Score       int               `json:"score"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	History     []Event           `json:"history,omitempty"`
}

// Event is one entry of a detailed profile history.
type Event struct {
	Day   int    `json:"day"`
	Kind  string `json:"kind"`
	Value int    `json:"value"`
}

var eventKinds = []string{"login", "purchase", "review", "share", "upload"}

// Synthesizer builds detailed profiles after an artificial delay.
type Synthesizer struct {
	// Latency simulates the cost of computing a profile
	Latency time.Duration

	// HistoryLength is the number of events in a detailed profile
	HistoryLength int
}

// Synthesize returns the detailed profile for entity.
func (s Synthesizer) Synthesize(ctx context.Context, entity string) (Profile, error) {
	if entity == "" {
		return Profile{}, fmt.Errorf("entity key cannot be empty")
	}

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return Profile{}, ctx.Err()
		}
	}

	rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(entity))))
	p := Summary(entity)
	p.Level = "detailed"
	p.Attributes = map[string]string{
		"region": fmt.Sprintf("region-%d", rng.Intn(8)),
		"tier":   fmt.Sprintf("tier-%d", rng.Intn(3)),
	}

	p.History = make([]Event, s.HistoryLength)
	for i := range p.History {
		p.History[i] = Event{
			Day:   i,
			Kind:  eventKinds[rng.Intn(len(eventKinds))],
			Value: rng.Intn(1000),
		}
	}
	return p, nil
}

// Summary returns the compact basic profile for entity.
func Summary(entity string) Profile {
	h := xxhash.Sum64String(entity)
	return Profile{
		Entity:      entity,
		Level:       "basic",
		DisplayName: fmt.Sprintf("Entity %s", entity),
		Score:       int(h % 100),
	}
}
