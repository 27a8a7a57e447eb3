package domain

const (
	ErrCodeDeviceNotFound    = "DEVICE_NOT_FOUND"
	ErrCodeDiscoveryFailed   = "DISCOVERY_FAILED"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodePlaybackRejected  = "PLAYBACK_REJECTED"
	ErrCodeUpstreamError     = "UPSTREAM_ERROR"
	ErrCodeToolNotFound      = "TOOL_NOT_FOUND"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// ToolError is a structured failure that tool handlers translate into the
// {success: false, ...} envelope. It never escapes the tool boundary as a
// JSON-RPC level error.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}
