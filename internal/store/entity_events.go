package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// EntityEvent is one link of the per-entity audit chain kept for bookings,
// booking requests and checkout sessions. Each hash covers the previous one,
// so a rewritten history breaks VerifyEntityChain.
type EntityEvent struct {
	EntityID  string          `json:"entity_id"`
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

func ComputeEntityEventHash(prevHash, entityID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, entityID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyEntityChain returns the sequence number of the first broken link, or
// 0 when the chain is intact.
func VerifyEntityChain(events []EntityEvent) int {
	prev := ""
	for i, event := range events {
		if event.Seq != i+1 || event.PrevHash != prev {
			return event.Seq
		}
		if ComputeEntityEventHash(prev, event.EntityID, event.Type, event.Payload, event.CreatedAt, event.Seq) != event.Hash {
			return event.Seq
		}
		prev = event.Hash
	}
	return 0
}
