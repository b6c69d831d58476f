package types

// Phase messages passed to a ProgressFunc.
const (
	PhaseDiscovery  = "discovering files"
	PhaseBackup     = "creating backup"
	PhaseCopy       = "copying files"
	PhaseValidation = "validating installation"
	PhaseRestore    = "restoring backup"
)

// ProgressFunc receives progress events. current counts from 0 to total
// within a phase.
type ProgressFunc func(current, total int, phase string)

// Report invokes f when it is non-nil.
func (f ProgressFunc) Report(current, total int, phase string) {
	if f != nil {
		f(current, total, phase)
	}
}
