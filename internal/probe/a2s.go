// Package probe queries game servers and converts the answers into snapshots.
package probe

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gamestat/internal/config"
	"github.com/woozymasta/gamestat/internal/models"
)

// ErrUnsupportedAddress is returned for addresses the A2S client cannot query.
var ErrUnsupportedAddress = errors.New("only IPv4 addresses can be probed")

// A2S probes servers with the Source Engine Query protocol.
type A2S struct {
	options config.Probe
}

// NewA2S returns an A2S prober using the given options.
func NewA2S(options config.Probe) *A2S {
	return &A2S{options: options}
}

// Probe sends A2S_INFO to ip:port. On failure the returned snapshot is
// marked Down and carries no details.
func (p *A2S) Probe(ip string, port int) (models.Snapshot, error) {
	down := models.Snapshot{
		IP:       ip,
		Port:     port,
		Protocol: models.ProtocolA2S,
		Status:   models.StatusDown,
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return down, fmt.Errorf("probe %s: %w", ip, ErrUnsupportedAddress)
	}

	client, err := a2s.New(ip, port)
	if err != nil {
		return down, err
	}
	defer func() { _ = client.Close() }()

	client.BufferSize = p.options.BufferSize
	client.Timeout = p.options.Timeout

	start := time.Now()
	info, err := client.GetInfo()
	if err != nil {
		return down, err
	}

	return fromInfo(ip, port, info, time.Since(start)), nil
}

func fromInfo(ip string, port int, info *a2s.Info, rtt time.Duration) models.Snapshot {
	numClients := int64(info.Players)
	maxClients := int64(info.MaxPlayers)
	ping := rtt.Milliseconds()

	snap := models.Snapshot{
		IP:       ip,
		Port:     port,
		Protocol: models.ProtocolA2S,
		Status:   models.StatusUp,
		Rules: map[string]string{
			"version": info.Version,
			"os":      info.Environment.String(),
		},
		Details: models.Details{
			NumClients: &numClients,
			MaxClients: &maxClients,
			Ping:       &ping,
		},
	}

	if info.Name != "" {
		snap.Name = &info.Name
	}
	if info.Map != "" {
		snap.Terrain = &info.Map
	}
	if info.Game != "" {
		snap.GameType = &info.Game
	}

	return snap
}
