// Package faultsim implements probabilistic fault injection: packet
// drop, delay, corruption, and forced disconnect, derived from a single
// connection-health slider or set explicitly.
package faultsim

// Config controls the failure simulator's behavior.
type Config struct {
	Enabled bool `json:"enabled"`

	// ConnectionHealth is 0-100; 100 is perfect.
	ConnectionHealth uint8 `json:"connection_health"`

	PacketLossRate float64 `json:"packet_loss_rate"`

	DelayMinMS uint64 `json:"delay_min_ms"`
	DelayMaxMS uint64 `json:"delay_max_ms"`

	CorruptionRate float64 `json:"corruption_rate"`

	ForceDisconnectRate float64 `json:"force_disconnect_rate"`
}

// DefaultConfig is a disabled, perfect-health configuration.
func DefaultConfig() Config {
	return Config{ConnectionHealth: 100}
}

// FromHealth derives a full Config from a 0-100 connection-health
// value. Anchor points: 100=perfect, 75=minor (12.5% loss, scaled
// continuously below), 50=degraded, 25=unstable (corruption kicks in),
// 0=severe (disconnect kicks in). The relationship is continuous:
// packet_loss = (1-h)*0.5, delay_max = (1-h)*1000, corruption =
// (1-h)*0.1 only for h<50, disconnect = (1-h)*0.05 only for h<25.
func FromHealth(health uint8) Config {
	if health > 100 {
		health = 100
	}
	healthF := float64(health) / 100.0

	packetLoss := (1.0 - healthF) * 0.5
	maxDelay := uint64((1.0 - healthF) * 1000.0)

	var corruption float64
	if health < 50 {
		corruption = (1.0 - healthF) * 0.1
	}

	var disconnect float64
	if health < 25 {
		disconnect = (1.0 - healthF) * 0.05
	}

	return Config{
		Enabled:             health < 100,
		ConnectionHealth:    health,
		PacketLossRate:      packetLoss,
		DelayMinMS:          0,
		DelayMaxMS:          maxDelay,
		CorruptionRate:      corruption,
		ForceDisconnectRate: disconnect,
	}
}

// IsValid checks the configuration's internal bounds.
func (c Config) IsValid() bool {
	return c.ConnectionHealth <= 100 &&
		c.PacketLossRate >= 0 && c.PacketLossRate <= 1 &&
		c.CorruptionRate >= 0 && c.CorruptionRate <= 1 &&
		c.ForceDisconnectRate >= 0 && c.ForceDisconnectRate <= 1 &&
		c.DelayMinMS <= c.DelayMaxMS
}
