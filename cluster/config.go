package cluster

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type Security struct {
	// AuthToken, when set, must be presented by every dialing peer in its
	// hello frame.
	AuthToken    string
	MaxFrameSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Config struct {
	// Rank is this process's identity; Peers[Rank] is its own address.
	Rank     int
	// Peers lists the address of every rank, indexed by rank.
	Peers    []string
	// BindAddr is the listen address. Empty means Peers[Rank].
	BindAddr string

	Sec Security

	DialTimeout    time.Duration
	DialBackoff    time.Duration // first retry delay, doubled per failure
	DialBackoffMax time.Duration
	SendQueue      int // per-peer outbound frames before Send blocks
	ReadBufSize    int
	WriteBufSize   int

	// GatherTimeout bounds how long rank 0 waits for results once its own
	// walk is done. Zero waits as long as the caller's context allows.
	GatherTimeout time.Duration
	// LingerTimeout bounds how long Close waits for every peer to finish
	// before dropping the connections.
	LingerTimeout time.Duration

	Logger logrus.FieldLogger
}

func Default() Config {
	return Config{
		Sec: Security{
			MaxFrameSize: 64 << 20,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		DialTimeout:    3 * time.Second,
		DialBackoff:    100 * time.Millisecond,
		DialBackoffMax: 2 * time.Second,
		SendQueue:      1024,
		GatherTimeout:  5 * time.Minute,
		LingerTimeout:  30 * time.Second,
		ReadBufSize:    64 << 10,
		WriteBufSize:   64 << 10,
		Logger:         logrus.StandardLogger(),
	}
}

// FillDefaults sets every zero field to its Default value.
func (c *Config) FillDefaults() {
	d := Default()
	if c.BindAddr == "" && c.Rank >= 0 && c.Rank < len(c.Peers) {
		c.BindAddr = c.Peers[c.Rank]
	}
	if c.Sec.MaxFrameSize <= 0 {
		c.Sec.MaxFrameSize = d.Sec.MaxFrameSize
	}
	if c.Sec.ReadTimeout <= 0 {
		c.Sec.ReadTimeout = d.Sec.ReadTimeout
	}
	if c.Sec.WriteTimeout <= 0 {
		c.Sec.WriteTimeout = d.Sec.WriteTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.DialBackoff <= 0 {
		c.DialBackoff = d.DialBackoff
	}
	if c.DialBackoffMax < c.DialBackoff {
		c.DialBackoffMax = c.DialBackoff
	}
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	if c.ReadBufSize <= 0 {
		c.ReadBufSize = d.ReadBufSize
	}
	if c.WriteBufSize <= 0 {
		c.WriteBufSize = d.WriteBufSize
	}
	if c.LingerTimeout <= 0 {
		c.LingerTimeout = d.LingerTimeout
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
}

// Validate checks that the rank table is usable.
func (c *Config) Validate() error {
	if len(c.Peers) == 0 {
		return fmt.Errorf("%w: no peers", ErrBadConfig)
	}
	if c.Rank < 0 || c.Rank >= len(c.Peers) {
		return fmt.Errorf("%w: rank %d not in [0,%d)", ErrBadConfig, c.Rank, len(c.Peers))
	}
	seen := make(map[string]int, len(c.Peers))
	for i, p := range c.Peers {
		if p == "" {
			return fmt.Errorf("%w: empty address for rank %d", ErrBadConfig, i)
		}
		if j, dup := seen[p]; dup {
			return fmt.Errorf("%w: ranks %d and %d share address %s", ErrBadConfig, j, i, p)
		}
		seen[p] = i
	}
	return nil
}
