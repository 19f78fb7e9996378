package treewalk

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	// Seed for the rank-local random source (steal targets, split points).
	// Zero picks a random seed. The rank is mixed in so ranks sharing a seed
	// still diverge.
	Seed        uint64
	// IdleBackoff is how long an idle rank with nothing to drain yields
	// before its next iteration. Zero yields the processor without sleeping.
	IdleBackoff time.Duration
	Logger      logrus.FieldLogger
}

func Default() Config {
	return Config{
		IdleBackoff: 50 * time.Microsecond,
		Logger:      logrus.StandardLogger(),
	}
}

// FillDefaults sets fields the caller left empty. Zero IdleBackoff is a
// valid setting and is kept.
func (c *Config) FillDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.IdleBackoff < 0 {
		c.IdleBackoff = 0
	}
}
