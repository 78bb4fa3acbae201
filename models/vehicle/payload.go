package vehicle

// Payload attaches role-conditional fields to a stage event. Each role with
// extra columns gets its own payload type, so an event can never carry (say)
// odometer readings recorded by a Bay Technician.
type Payload interface {
	apply(e *StageEvent)
}

// SecurityEntryPayload carries the gate readings taken when a vehicle enters.
type SecurityEntryPayload struct {
	InKM     *float64
	InDriver *string
}

func (p SecurityEntryPayload) apply(e *StageEvent) {
	e.InKM = p.InKM
	e.InDriver = p.InDriver
}

// SecurityExitPayload carries the gate readings taken when a vehicle leaves.
type SecurityExitPayload struct {
	OutKM     *float64
	OutDriver *string
}

func (p SecurityExitPayload) apply(e *StageEvent) {
	e.OutKM = p.OutKM
	e.OutDriver = p.OutDriver
}

// BayWorkPayload keys a bay work session.
type BayWorkPayload struct {
	WorkType  *string
	BayNumber *int
}

func (p BayWorkPayload) apply(e *StageEvent) {
	e.WorkType = p.WorkType
	e.BayNumber = p.BayNumber
}

// ApplyPayload copies the payload fields onto the event. A nil payload leaves
// the event bare.
func ApplyPayload(e *StageEvent, p Payload) {
	if p != nil {
		p.apply(e)
	}
}
