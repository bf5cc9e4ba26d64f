package jsonrpc

// JSON-RPC Method name constants
const (
	// State methods
	MethodStateGetRoot    = "state.getroot"
	MethodStateGetAccount = "state.getaccount"

	// Chain methods
	MethodChainGetTip = "chain.gettip"

	// Health methods
	MethodHealthCheck = "health.check"
)
