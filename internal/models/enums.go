package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownTag is returned when a Status or Protocol tag is not in its closed set.
var ErrUnknownTag = errors.New("unknown tag")

// Status is the reachability of a server.
type Status uint8

// Status values.
const (
	StatusUnspecified Status = iota
	StatusUp
	StatusDown
)

var statusTags = [...]string{
	StatusUnspecified: "Unspecified",
	StatusUp:          "Up",
	StatusDown:        "Down",
}

// ParseStatus matches a tag exactly.
func ParseStatus(tag string) (Status, error) {
	for i, t := range statusTags {
		if t == tag {
			return Status(i), nil
		}
	}

	return StatusUnspecified, fmt.Errorf("status %q: %w", tag, ErrUnknownTag)
}

func (s Status) String() string {
	if int(s) < len(statusTags) {
		return statusTags[s]
	}

	return fmt.Sprintf("Status(%d)", uint8(s))
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler. Unknown tags and null are an error.
func (s *Status) UnmarshalJSON(data []byte) error {
	tag, err := unmarshalTag("status", data)
	if err != nil {
		return err
	}

	v, err := ParseStatus(tag)
	if err != nil {
		return err
	}

	*s = v
	return nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	tag, err := scanTag(src)
	if err != nil {
		return err
	}

	v, err := ParseStatus(tag)
	if err != nil {
		return err
	}

	*s = v
	return nil
}

// Protocol is the query protocol family of a server.
type Protocol uint8

// Protocol values.
const (
	ProtocolUnspecified Protocol = iota
	ProtocolQ3M
	ProtocolQ3S
	ProtocolA2S
	ProtocolTeeworldsM
	ProtocolTeeworldsS
)

var protocolTags = [...]string{
	ProtocolUnspecified: "Unspecified",
	ProtocolQ3M:         "Q3M",
	ProtocolQ3S:         "Q3S",
	ProtocolA2S:         "A2S",
	ProtocolTeeworldsM:  "TEEWORLDSM",
	ProtocolTeeworldsS:  "TEEWORLDSS",
}

// ParseProtocol matches a tag exactly.
func ParseProtocol(tag string) (Protocol, error) {
	for i, t := range protocolTags {
		if t == tag {
			return Protocol(i), nil
		}
	}

	return ProtocolUnspecified, fmt.Errorf("protocol %q: %w", tag, ErrUnknownTag)
}

func (p Protocol) String() string {
	if int(p) < len(protocolTags) {
		return protocolTags[p]
	}

	return fmt.Sprintf("Protocol(%d)", uint8(p))
}

// MarshalJSON implements json.Marshaler.
func (p Protocol) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler. Unknown tags and null are an error.
func (p *Protocol) UnmarshalJSON(data []byte) error {
	tag, err := unmarshalTag("protocol", data)
	if err != nil {
		return err
	}

	v, err := ParseProtocol(tag)
	if err != nil {
		return err
	}

	*p = v
	return nil
}

// Scan implements sql.Scanner.
func (p *Protocol) Scan(src any) error {
	tag, err := scanTag(src)
	if err != nil {
		return err
	}

	v, err := ParseProtocol(tag)
	if err != nil {
		return err
	}

	*p = v
	return nil
}

// unmarshalTag reads a JSON string tag. null is not a tag.
func unmarshalTag(field string, data []byte) (string, error) {
	if bytes.Equal(data, []byte("null")) {
		return "", fmt.Errorf("%s null: %w", field, ErrUnknownTag)
	}

	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return "", err
	}

	return tag, nil
}

func scanTag(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported scan type %T", src)
	}
}
