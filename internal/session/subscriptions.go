// Package session tracks per-connection subscription state and the
// connection lifecycle (disconnected, connected, ready).
package session

// Subscriptions records which broadcast event streams a connection has
// opted into. All subscribe/unsubscribe operations are idempotent.
type Subscriptions struct {
	TighteningResult   bool
	PsetSelection      bool
	VehicleID          bool
	MultiSpindleStatus bool
	MultiSpindleResult bool
	Alarm              bool
	JobInfo            bool
}

func (s *Subscriptions) SubscribeTighteningResult()   { s.TighteningResult = true }
func (s *Subscriptions) UnsubscribeTighteningResult() { s.TighteningResult = false }
func (s *Subscriptions) IsSubscribedToTighteningResult() bool { return s.TighteningResult }

func (s *Subscriptions) SubscribePsetSelection()   { s.PsetSelection = true }
func (s *Subscriptions) UnsubscribePsetSelection() { s.PsetSelection = false }
func (s *Subscriptions) IsSubscribedToPsetSelection() bool { return s.PsetSelection }

func (s *Subscriptions) SubscribeVehicleID()   { s.VehicleID = true }
func (s *Subscriptions) UnsubscribeVehicleID() { s.VehicleID = false }
func (s *Subscriptions) IsSubscribedToVehicleID() bool { return s.VehicleID }

func (s *Subscriptions) SubscribeMultiSpindleStatus()   { s.MultiSpindleStatus = true }
func (s *Subscriptions) UnsubscribeMultiSpindleStatus() { s.MultiSpindleStatus = false }
func (s *Subscriptions) IsSubscribedToMultiSpindleStatus() bool { return s.MultiSpindleStatus }

func (s *Subscriptions) SubscribeMultiSpindleResult()   { s.MultiSpindleResult = true }
func (s *Subscriptions) UnsubscribeMultiSpindleResult() { s.MultiSpindleResult = false }
func (s *Subscriptions) IsSubscribedToMultiSpindleResult() bool { return s.MultiSpindleResult }

func (s *Subscriptions) SubscribeAlarm()   { s.Alarm = true }
func (s *Subscriptions) UnsubscribeAlarm() { s.Alarm = false }

func (s *Subscriptions) SubscribeJobInfo()   { s.JobInfo = true }
func (s *Subscriptions) UnsubscribeJobInfo() { s.JobInfo = false }

// ActiveCount returns how many of the 7 subscription kinds are on.
func (s *Subscriptions) ActiveCount() int {
	count := 0
	for _, on := range []bool{
		s.TighteningResult, s.PsetSelection, s.VehicleID,
		s.MultiSpindleStatus, s.MultiSpindleResult, s.Alarm, s.JobInfo,
	} {
		if on {
			count++
		}
	}
	return count
}

// HasAny reports whether at least one subscription is active.
func (s *Subscriptions) HasAny() bool { return s.ActiveCount() > 0 }
