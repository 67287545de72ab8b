package log

// Canonical field name constants for structured logging.
const (
	FieldComponent   = "component"
	FieldRecordingID = "recording_id"
	FieldOutput      = "output"
	FieldDevice      = "device"
	FieldPath        = "path"
	FieldOldState    = "old_state"
	FieldNewState    = "new_state"
	FieldFacing      = "facing"
	FieldMode        = "mode"
	FieldBudget      = "budget_s"
	FieldDuration    = "duration_s"
	FieldSignal      = "signal"
)

// Component names.
const (
	ComponentSession    = "capture-session"
	ComponentCamera     = "camera"
	ComponentRecordings = "recordings"
	ComponentAPI        = "api"
	ComponentHardware   = "testpattern"
)
