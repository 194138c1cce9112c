package models

import (
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestServerEncode(t *testing.T) {
	s := NewServer("127.0.0.1")
	s.Protocol = ProtocolQ3S
	s.Status = StatusUp
	s.Country = DecodeCountry("RU")

	out, err := json.Marshal(s)
	require.NoError(t, err)

	assert.Equal(t,
		`{"host":"127.0.0.1","protocol":"Q3S","status":"Up","country":"RU","rules":{}}`,
		string(out))
}

func TestServerEncodeNilRules(t *testing.T) {
	out, err := json.Marshal(Server{Host: "h"})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"host":"h","protocol":"Unspecified","status":"Unspecified","country":"Unspecified","rules":{}}`,
		string(out))
}

func TestServerDecode(t *testing.T) {
	var s Server
	err := json.Unmarshal([]byte(`{
		"host": "127.0.0.1",
		"protocol": "Q3S",
		"status": "Up",
		"country": "RU",
		"rules": {}
	}`), &s)
	require.NoError(t, err)

	want := NewServer("127.0.0.1")
	want.Protocol = ProtocolQ3S
	want.Status = StatusUp
	want.Country = DecodeCountry("RU")

	assert.Equal(t, *want, s)
}

func TestServerDecodeInvalidCountry(t *testing.T) {
	var s Server
	require.NoError(t, json.Unmarshal([]byte(`{"host":"127.0.0.1","status":"Up","country":"ZZ"}`), &s))

	assert.Equal(t, Unspecified, s.Country)
	assert.Equal(t, StatusUp, s.Status)
	assert.Equal(t, "127.0.0.1", s.Host)
}

func TestServerDecodeDefaults(t *testing.T) {
	var s Server
	require.NoError(t, json.Unmarshal([]byte(`{"host":"10.0.0.1:27960"}`), &s))

	assert.Equal(t, *NewServer("10.0.0.1:27960"), s)
	assert.Equal(t, StatusUnspecified, s.Status)
	assert.Equal(t, ProtocolUnspecified, s.Protocol)
	assert.Equal(t, Unspecified, s.Country)
	assert.NotNil(t, s.Rules)
	assert.Empty(t, s.Rules)
}

func TestServerDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"missing host":     `{"status":"Up"}`,
		"null host":        `{"host":null}`,
		"unknown status":   `{"host":"h","status":"Alive"}`,
		"unknown protocol": `{"host":"h","protocol":"GS2"}`,
		"rule type":        `{"host":"h","rules":{"a":1}}`,
		"not an object":    `["h"]`,
	}

	for name, in := range cases {
		var s Server
		assert.Error(t, json.Unmarshal([]byte(in), &s), name)
		assert.Equal(t, Server{}, s, name)
	}

	var s Server
	assert.ErrorIs(t, json.Unmarshal([]byte(`{}`), &s), ErrMissingField)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"host":"h","status":"up"}`), &s), ErrUnknownTag)
}

func TestServerOptionalFields(t *testing.T) {
	s := NewServer("h")
	s.Name = ptr("Frag Fest")
	s.NeedPass = ptr(false)
	s.NumClients = ptr(int64(0))
	s.Ping = ptr(int64(42))

	out, err := json.Marshal(s)
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &keys))
	assert.Len(t, keys, 9)
	for _, k := range []string{"name", "need_pass", "num_clients", "ping"} {
		assert.Contains(t, keys, k)
	}
	for _, k := range []string{"mod_name", "game_type", "terrain", "max_clients", "num_bots", "secure", "players"} {
		assert.NotContains(t, keys, k)
	}

	var back Server
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, *s, back)
	assert.Nil(t, back.Terrain)
	assert.Nil(t, back.Players)
}

func TestServerOptionalNull(t *testing.T) {
	var s Server
	require.NoError(t, json.Unmarshal([]byte(`{"host":"h","name":null,"players":null,"country":null}`), &s))

	assert.Nil(t, s.Name)
	assert.Nil(t, s.Players)
	assert.Equal(t, Unspecified, s.Country)
}

func TestServerRejectsNullDefaults(t *testing.T) {
	var s Server
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"host":"h","status":null}`), &s), ErrUnknownTag)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"host":"h","protocol":null}`), &s), ErrUnknownTag)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"host":"h","rules":null}`), &s), ErrNullField)
	assert.Equal(t, Server{}, s)

	var r ResolvedServer
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"addr":"127.0.0.1:1","status":null}`), &r), ErrUnknownTag)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"addr":"127.0.0.1:1","rules":null}`), &r), ErrNullField)
	assert.Equal(t, ResolvedServer{}, r)
}

func TestServerPlayers(t *testing.T) {
	s := NewServer("h")
	s.Players = []Player{}

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"players":[]`)

	var back Server
	require.NoError(t, json.Unmarshal(out, &back))
	assert.NotNil(t, back.Players)
	assert.Empty(t, back.Players)

	s.Players = []Player{
		{Name: "alice", Ping: ptr(int64(30)), Info: map[string]string{"score": "12"}},
		{Name: "bob"},
	}
	out, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), `{"name":"bob","info":{}}`)

	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "alice", back.Players[0].Name)
	assert.Equal(t, int64(30), *back.Players[0].Ping)
	assert.Equal(t, map[string]string{"score": "12"}, back.Players[0].Info)
	assert.Nil(t, back.Players[1].Ping)
	assert.Equal(t, map[string]string{}, back.Players[1].Info)
}

func TestServerSummary(t *testing.T) {
	s := NewServer("1.2.3.4:27015")
	s.Protocol = ProtocolA2S
	s.Status = StatusDown
	s.Name = ptr("srv")

	assert.Equal(t, Summary{
		Endpoint: "1.2.3.4:27015",
		Name:     "srv",
		Protocol: ProtocolA2S,
		Status:   StatusDown,
	}, s.Summary())
}

func TestResolvedServerEncode(t *testing.T) {
	s := NewResolvedServer(netip.MustParseAddrPort("127.0.0.1:27960"))
	s.Status = StatusUp
	s.Country = DecodeCountry("RU")
	s.Rules["protocol-version"] = 84

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t,
		`{"addr":"127.0.0.1:27960","status":"Up","country":"RU","rules":{"protocol-version":84}}`,
		string(out))
}

func TestResolvedServerDecode(t *testing.T) {
	var s ResolvedServer
	require.NoError(t, json.Unmarshal([]byte(`{
		"addr": "[::1]:8303",
		"country": "de",
		"rules": {"protocol-version": 84, "mods": ["ctf", "dm"], "motd": "hi", "limits": {"score": 1000}},
		"players": [{"name": "p1", "info": {"score": 7, "clan": "x"}}]
	}`), &s))

	assert.Equal(t, netip.MustParseAddrPort("[::1]:8303"), s.Addr)
	assert.Equal(t, Unspecified, s.Country)
	assert.Equal(t, StatusUnspecified, s.Status)
	assert.Equal(t, json.Number("84"), s.Rules["protocol-version"])
	assert.Equal(t, []any{"ctf", "dm"}, s.Rules["mods"])
	assert.Equal(t, "hi", s.Rules["motd"])
	assert.Equal(t, map[string]any{"score": json.Number("1000")}, s.Rules["limits"])
	require.Len(t, s.Players, 1)
	assert.Equal(t, json.Number("7"), s.Players[0].Info["score"])

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"addr": "[::1]:8303",
		"status": "Unspecified",
		"country": "Unspecified",
		"rules": {"protocol-version": 84, "mods": ["ctf", "dm"], "motd": "hi", "limits": {"score": 1000}},
		"players": [{"name": "p1", "info": {"score": 7, "clan": "x"}}]
	}`, string(out))
}

func TestResolvedServerDecodeErrors(t *testing.T) {
	var s ResolvedServer

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"status":"Up"}`), &s), ErrMissingField)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"addr":""}`), &s), ErrMissingField)
	assert.Error(t, json.Unmarshal([]byte(`{"addr":"localhost"}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"addr":"1.2.3.4:1","status":"Idle"}`), &s))

	require.NoError(t, json.Unmarshal([]byte(`{"addr":"1.2.3.4:1","protocol":"Nope"}`), &s))
	assert.Equal(t, *NewResolvedServer(netip.MustParseAddrPort("1.2.3.4:1")), s)
}
