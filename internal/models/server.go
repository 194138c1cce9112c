// Package models defines the server state records, their wire encoding and
// the values exchanged between probes, storage and the HTTP API.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
)

// ErrMissingField is returned when a mandatory field is absent from a record.
var ErrMissingField = errors.New("missing mandatory field")

// ErrNullField is returned when a defaulted field is explicitly null.
var ErrNullField = errors.New("field must not be null")

// Record is a decoded server record of either schema profile.
type Record interface {
	json.Marshaler

	// Summary returns the indexed attributes of the record.
	Summary() Summary
}

// Summary holds the record attributes used for storage indexing and filtering.
type Summary struct {
	Endpoint string   `json:"endpoint"`
	Name     string   `json:"name,omitempty"`
	Protocol Protocol `json:"protocol"`
	Status   Status   `json:"status"`
	Country  Country  `json:"country"`
}

// Details holds the optional descriptive fields shared by both profiles.
// A nil field is omitted from the encoded form.
type Details struct {
	Name       *string `json:"name,omitempty"`
	NeedPass   *bool   `json:"need_pass,omitempty"`
	ModName    *string `json:"mod_name,omitempty"`
	GameType   *string `json:"game_type,omitempty"`
	Terrain    *string `json:"terrain,omitempty"`
	NumClients *int64  `json:"num_clients,omitempty"`
	MaxClients *int64  `json:"max_clients,omitempty"`
	NumBots    *int64  `json:"num_bots,omitempty"`
	Secure     *bool   `json:"secure,omitempty"`
	Ping       *int64  `json:"ping,omitempty"`
}

func (d Details) name() string {
	if d.Name == nil {
		return ""
	}

	return *d.Name
}

// Player is a roster entry of the host profile.
type Player struct {
	Name string            `json:"name"`
	Ping *int64            `json:"ping,omitempty"`
	Info map[string]string `json:"info"`
}

// MarshalJSON implements json.Marshaler.
func (p Player) MarshalJSON() ([]byte, error) {
	type plain Player
	v := plain(p)
	if v.Info == nil {
		v.Info = map[string]string{}
	}

	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Player) UnmarshalJSON(data []byte) error {
	type plain Player
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Info == nil {
		v.Info = map[string]string{}
	}

	*p = Player(v)
	return nil
}

// Server is the host profile record: a bare host string, an explicit
// protocol and text-valued rules.
type Server struct {
	Rules    map[string]string
	Players  []Player
	Host     string
	Details
	Protocol Protocol
	Status   Status
	Country  Country
}

// NewServer returns a host profile record with all defaults populated.
func NewServer(host string) *Server {
	return &Server{Host: host, Rules: map[string]string{}}
}

type serverWire struct {
	Host     *string           `json:"host"`
	Protocol Protocol          `json:"protocol"`
	Status   Status            `json:"status"`
	Country  Country           `json:"country"`
	Rules    map[string]string `json:"rules"`
	Details
	Players *[]Player `json:"players,omitempty"`
}

// Summary implements Record.
func (s Server) Summary() Summary {
	return Summary{
		Endpoint: s.Host,
		Name:     s.Details.name(),
		Protocol: s.Protocol,
		Status:   s.Status,
		Country:  s.Country,
	}
}

// MarshalJSON implements json.Marshaler.
func (s Server) MarshalJSON() ([]byte, error) {
	w := serverWire{
		Host:     &s.Host,
		Protocol: s.Protocol,
		Status:   s.Status,
		Country:  s.Country,
		Rules:    s.Rules,
		Details:  s.Details,
	}
	if w.Rules == nil {
		w.Rules = map[string]string{}
	}
	if s.Players != nil {
		w.Players = &s.Players
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The whole record fails on the
// first error; status, protocol, country and rules default when absent.
func (s *Server) UnmarshalJSON(data []byte) error {
	var w serverWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := rejectNull(data, "rules"); err != nil {
		return err
	}
	if w.Host == nil {
		return fmt.Errorf("host: %w", ErrMissingField)
	}

	v := Server{
		Host:     *w.Host,
		Protocol: w.Protocol,
		Status:   w.Status,
		Country:  w.Country,
		Rules:    w.Rules,
		Details:  w.Details,
	}
	if v.Rules == nil {
		v.Rules = map[string]string{}
	}
	if w.Players != nil {
		v.Players = *w.Players
	}

	*s = v
	return nil
}

// ResolvedPlayer is a roster entry of the addr profile with structured info values.
type ResolvedPlayer struct {
	Name string         `json:"name"`
	Ping *int64         `json:"ping,omitempty"`
	Info map[string]any `json:"info"`
}

// MarshalJSON implements json.Marshaler.
func (p ResolvedPlayer) MarshalJSON() ([]byte, error) {
	type plain ResolvedPlayer
	v := plain(p)
	if v.Info == nil {
		v.Info = map[string]any{}
	}

	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are kept as json.Number.
func (p *ResolvedPlayer) UnmarshalJSON(data []byte) error {
	type plain ResolvedPlayer
	var v plain
	if err := decodeNumbers(data, &v); err != nil {
		return err
	}
	if v.Info == nil {
		v.Info = map[string]any{}
	}

	*p = ResolvedPlayer(v)
	return nil
}

// ResolvedServer is the addr profile record: a socket address, no protocol
// field and structured rule values.
type ResolvedServer struct {
	Rules   map[string]any
	Players []ResolvedPlayer
	Details
	Addr    netip.AddrPort
	Status  Status
	Country Country
}

// NewResolvedServer returns an addr profile record with all defaults populated.
func NewResolvedServer(addr netip.AddrPort) *ResolvedServer {
	return &ResolvedServer{Addr: addr, Rules: map[string]any{}}
}

type resolvedServerWire struct {
	Addr    *netip.AddrPort `json:"addr"`
	Status  Status          `json:"status"`
	Country Country         `json:"country"`
	Rules   map[string]any  `json:"rules"`
	Details
	Players *[]ResolvedPlayer `json:"players,omitempty"`
}

// Summary implements Record.
func (s ResolvedServer) Summary() Summary {
	return Summary{
		Endpoint: s.Addr.String(),
		Name:     s.Details.name(),
		Status:   s.Status,
		Country:  s.Country,
	}
}

// MarshalJSON implements json.Marshaler.
func (s ResolvedServer) MarshalJSON() ([]byte, error) {
	w := resolvedServerWire{
		Addr:    &s.Addr,
		Status:  s.Status,
		Country: s.Country,
		Rules:   s.Rules,
		Details: s.Details,
	}
	if w.Rules == nil {
		w.Rules = map[string]any{}
	}
	if s.Players != nil {
		w.Players = &s.Players
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ResolvedServer) UnmarshalJSON(data []byte) error {
	var w resolvedServerWire
	if err := decodeNumbers(data, &w); err != nil {
		return err
	}
	if err := rejectNull(data, "rules"); err != nil {
		return err
	}
	if w.Addr == nil || !w.Addr.IsValid() {
		return fmt.Errorf("addr: %w", ErrMissingField)
	}

	v := ResolvedServer{
		Addr:    *w.Addr,
		Status:  w.Status,
		Country: w.Country,
		Rules:   w.Rules,
		Details: w.Details,
	}
	if v.Rules == nil {
		v.Rules = map[string]any{}
	}
	if w.Players != nil {
		v.Players = *w.Players
	}

	*s = v
	return nil
}

// rejectNull fails when any of keys is present with a null value. Keys with a
// default may be omitted but not nulled.
func rejectNull(data []byte, keys ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for _, k := range keys {
		if v, ok := raw[k]; ok && bytes.Equal(v, []byte("null")) {
			return fmt.Errorf("%s: %w", k, ErrNullField)
		}
	}

	return nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	return dec.Decode(v)
}
