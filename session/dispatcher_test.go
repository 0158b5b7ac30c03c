package session

import (
	"net"
	"testing"
	"time"

	"github.com/emiago/rocaudio/fec"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDispatcherCreatesSessionPerSourceAddress(t *testing.T) {
	addr1, err := net.ResolveUDPAddr("udp", "127.0.0.1:6000")
	require.NoError(t, err)
	addr2, err := net.ResolveUDPAddr("udp", "127.0.0.1:6001")
	require.NoError(t, err)

	d := NewDispatcher(func(a net.Addr) Config {
		return defaultTestConfig(a)
	}, func() fec.BlockDecoder { return fec.NewRSDecoder(samplesPerPacket) }, zerolog.Nop())

	now := time.Now()
	p1 := buildSourcePacket(t, 0, 1, make([]byte, samplesPerPacket))
	p1.Addr = addr1
	_, err = d.Dispatch(p1, now)
	require.NoError(t, err)

	p2 := buildSourcePacket(t, 0, 2, make([]byte, samplesPerPacket))
	p2.Addr = addr2
	_, err = d.Dispatch(p2, now)
	require.NoError(t, err)

	require.Equal(t, 2, d.Count(), "two distinct source addresses must yield two independent sessions")
}

func TestDispatcherEvictsIdleSessions(t *testing.T) {
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:6002")
	require.NoError(t, err)

	d := NewDispatcher(func(a net.Addr) Config {
		cfg := defaultTestConfig(a)
		cfg.IdleTimeout = time.Second
		return cfg
	}, func() fec.BlockDecoder { return fec.NewRSDecoder(samplesPerPacket) }, zerolog.Nop())

	now := time.Now()
	p := buildSourcePacket(t, 0, 1, make([]byte, samplesPerPacket))
	p.Addr = addr
	_, err = d.Dispatch(p, now)
	require.NoError(t, err)
	require.Equal(t, 1, d.Count())

	d.Update(now.Add(2 * time.Second))
	require.Equal(t, 0, d.Count(), "idle session must be evicted on tick")
}

func TestDispatcherEnforcesMaxSessions(t *testing.T) {
	addr1, err := net.ResolveUDPAddr("udp", "127.0.0.1:6003")
	require.NoError(t, err)
	addr2, err := net.ResolveUDPAddr("udp", "127.0.0.1:6004")
	require.NoError(t, err)

	d := NewDispatcher(func(a net.Addr) Config {
		return defaultTestConfig(a)
	}, func() fec.BlockDecoder { return fec.NewRSDecoder(samplesPerPacket) }, zerolog.Nop())
	d.MaxSessions = 1

	now := time.Now()
	p1 := buildSourcePacket(t, 0, 1, make([]byte, samplesPerPacket))
	p1.Addr = addr1
	_, err = d.Dispatch(p1, now)
	require.NoError(t, err)

	p2 := buildSourcePacket(t, 0, 2, make([]byte, samplesPerPacket))
	p2.Addr = addr2
	s2, err := d.Dispatch(p2, now)
	require.NoError(t, err)
	require.Nil(t, s2, "dispatch beyond MaxSessions for a new source must be dropped")
	require.Equal(t, 1, d.Count())
}
