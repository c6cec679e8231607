package device

// PsetChangedPayload is the PsetChanged event payload.
type PsetChangedPayload struct {
	ID   uint32
	Name string
}

// AutoTighteningProgress is the AutoTighteningProgress event payload.
type AutoTighteningProgress struct {
	Counter uint32
	Target  uint32
	Running bool
}
