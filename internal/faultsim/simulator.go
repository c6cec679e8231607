package faultsim

import (
	"math/rand"
	"sync"
	"time"
)

// Decision bundles the five independent per-frame choices that must be
// gathered in one synchronous step, with no goroutine suspension
// between them: a random generator's sequence may not survive crossing
// an await/yield point.
type Decision struct {
	Disconnect bool
	Drop       bool
	Delay      time.Duration
	Corrupt    bool
	Corrupted  []byte
}

// Simulator makes probabilistic per-frame decisions from a Config. A
// single Simulator is shared by every connection the server accepts,
// and SetConfig can be driven live (via Observable.SetFailureConfig)
// while other connections are mid-Decide, so config and rng are both
// guarded by mu.
type Simulator struct {
	mu     sync.Mutex
	config Config
	rng    *rand.Rand
}

// New returns a simulator seeded from the wall clock.
func New(config Config) *Simulator {
	return &Simulator{config: config, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithRand returns a simulator driven by a caller-supplied source,
// for deterministic tests.
func NewWithRand(config Config, rng *rand.Rand) *Simulator {
	return &Simulator{config: config, rng: rng}
}

// IsEnabled reports the master failure-injection switch.
func (s *Simulator) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Enabled
}

// Config returns the active configuration.
func (s *Simulator) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetConfig replaces the active configuration. Safe to call
// concurrently with Decide from every live connection.
func (s *Simulator) SetConfig(c Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = c
}

func (s *Simulator) shouldDropPacket() bool {
	if !s.config.Enabled || s.config.PacketLossRate == 0 {
		return false
	}
	return s.rng.Float64() < s.config.PacketLossRate
}

func (s *Simulator) getDelay() time.Duration {
	if !s.config.Enabled || s.config.DelayMaxMS == 0 {
		return 0
	}
	var delayMS uint64
	if s.config.DelayMinMS >= s.config.DelayMaxMS {
		delayMS = s.config.DelayMaxMS
	} else {
		span := int64(s.config.DelayMaxMS-s.config.DelayMinMS) + 1
		delayMS = s.config.DelayMinMS + uint64(s.rng.Int63n(span))
	}
	return time.Duration(delayMS) * time.Millisecond
}

func (s *Simulator) shouldCorruptMessage() bool {
	if !s.config.Enabled || s.config.CorruptionRate == 0 {
		return false
	}
	return s.rng.Float64() < s.config.CorruptionRate
}

func (s *Simulator) shouldDisconnect() bool {
	if !s.config.Enabled || s.config.ForceDisconnectRate == 0 {
		return false
	}
	return s.rng.Float64() < s.config.ForceDisconnectRate
}

// Decide gathers all five per-frame decisions in one synchronous call.
// Callers must act on the result without yielding in between: (1) if
// Disconnect, terminate the connection; (2) else if Drop, skip the
// send; (3) else sleep Delay; (4) send Corrupted if Corrupt, else the
// original bytes.
func (s *Simulator) Decide(original []byte) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	disconnect := s.shouldDisconnect()
	drop := s.shouldDropPacket()
	delay := s.getDelay()
	corrupt := s.shouldCorruptMessage()

	var corrupted []byte
	if corrupt {
		corrupted = s.corruptMessage(original)
	}

	return Decision{Disconnect: disconnect, Drop: drop, Delay: delay, Corrupt: corrupt, Corrupted: corrupted}
}

// corruptMessage picks uniformly among five corruption types: (0)
// overwrite the length field with ASCII 9999; (1) overwrite MID bytes
// 4,5 with ASCII X; (2) wrap-add 1 to 1-3 random bytes; (3) truncate to
// a random prefix; (4) append 1-10 random bytes.
func (s *Simulator) corruptMessage(original []byte) []byte {
	if len(original) == 0 {
		return append([]byte(nil), original...)
	}

	corrupted := append([]byte(nil), original...)

	switch s.rng.Intn(5) {
	case 0:
		if len(corrupted) >= 4 {
			corrupted[0], corrupted[1], corrupted[2], corrupted[3] = '9', '9', '9', '9'
		}
	case 1:
		if len(corrupted) >= 8 {
			corrupted[4], corrupted[5] = 'X', 'X'
		}
	case 2:
		max := 3
		if len(corrupted) < max {
			max = len(corrupted)
		}
		numFlips := 1 + s.rng.Intn(max)
		for i := 0; i < numFlips; i++ {
			idx := s.rng.Intn(len(corrupted))
			corrupted[idx]++
		}
	case 3:
		if len(corrupted) > 1 {
			newLen := 1 + s.rng.Intn(len(corrupted)-1)
			corrupted = corrupted[:newLen]
		}
	case 4:
		garbageCount := 1 + s.rng.Intn(10)
		for i := 0; i < garbageCount; i++ {
			corrupted = append(corrupted, byte(s.rng.Intn(256)))
		}
	}

	return corrupted
}
