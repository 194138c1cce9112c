// Package codec encodes and decodes server records for a schema profile
// selected at construction time.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/woozymasta/gamestat/internal/models"
)

// Profile selects the record shape.
type Profile string

const (
	// ProfileHost records carry a bare host string, a protocol field and text rules.
	ProfileHost Profile = "host"

	// ProfileAddr records carry a socket address, no protocol and structured rules.
	ProfileAddr Profile = "addr"
)

var (
	// ErrUnknownProfile is returned by New for an unsupported profile name.
	ErrUnknownProfile = errors.New("unknown schema profile")

	// ErrProfileMismatch is returned when encoding a record of another profile.
	ErrProfileMismatch = errors.New("record does not match schema profile")
)

// Codec converts records to and from the wire form. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	profile Profile
}

// New returns a codec for the given profile.
func New(profile Profile) (*Codec, error) {
	switch profile {
	case ProfileHost, ProfileAddr:
		return &Codec{profile: profile}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
}

// Profile returns the configured profile.
func (c *Codec) Profile() Profile {
	return c.profile
}

// Encode returns the wire form of r.
func (c *Codec) Encode(r models.Record) ([]byte, error) {
	switch r.(type) {
	case models.Server, *models.Server:
		if c.profile != ProfileHost {
			return nil, fmt.Errorf("%w: host record for %s profile", ErrProfileMismatch, c.profile)
		}
	case models.ResolvedServer, *models.ResolvedServer:
		if c.profile != ProfileAddr {
			return nil, fmt.Errorf("%w: addr record for %s profile", ErrProfileMismatch, c.profile)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrProfileMismatch, r)
	}

	return json.Marshal(r)
}

// Decode parses a wire record. Any field error fails the whole record.
func (c *Codec) Decode(data []byte) (models.Record, error) {
	if c.profile == ProfileAddr {
		var s models.ResolvedServer
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode addr record: %w", err)
		}
		return &s, nil
	}

	var s models.Server
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode host record: %w", err)
	}
	return &s, nil
}

// Build constructs a record of the configured profile from a probe snapshot.
func (c *Codec) Build(snap models.Snapshot) (models.Record, error) {
	if c.profile == ProfileAddr {
		addr, err := netip.ParseAddrPort(net.JoinHostPort(snap.IP, strconv.Itoa(snap.Port)))
		if err != nil {
			return nil, fmt.Errorf("resolve %s:%d: %w", snap.IP, snap.Port, err)
		}

		s := models.NewResolvedServer(addr)
		s.Status = snap.Status
		s.Country = snap.Country
		s.Details = snap.Details
		for k, v := range snap.Rules {
			s.Rules[k] = v
		}
		return s, nil
	}

	s := models.NewServer(net.JoinHostPort(snap.IP, strconv.Itoa(snap.Port)))
	s.Protocol = snap.Protocol
	s.Status = snap.Status
	s.Country = snap.Country
	s.Details = snap.Details
	for k, v := range snap.Rules {
		s.Rules[k] = v
	}
	return s, nil
}
