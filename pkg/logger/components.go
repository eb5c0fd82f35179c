package logger

// Component name constants for standardized logging
const (
	// Core components
	ComponentCore     = "Core"
	ComponentDispatch = "Dispatch"
	ComponentHSM      = "HSM"

	// Command execution
	ComponentActions = "Actions"
	ComponentDevice  = "Device"

	// Outer surfaces
	ComponentAPI  = "API"
	ComponentDemo = "Demo"
)
