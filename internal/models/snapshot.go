package models

import (
	"encoding/json"
	"time"
)

// Snapshot is the profile-neutral result of probing a server.
type Snapshot struct {
	Rules map[string]string
	IP    string
	Details
	Port     int
	Protocol Protocol
	Status   Status
	Country  Country
}

// Announce is the payload a game server posts to register itself.
type Announce struct {
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// Entry is a stored record together with its bookkeeping columns.
type Entry struct {
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
	Checksum  string          `json:"checksum"`
	Document  json.RawMessage `json:"document"`
	Summary
	Count int64 `json:"count"`
}
