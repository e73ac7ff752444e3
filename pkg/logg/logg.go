package logg

// Field keys shared by every component logger.
const (
	Layer      = "layer"
	Operation  = "op"
	SessionID  = "session_id"
	Tool       = "tool"
	ToolCallID = "tool_call_id"
	Step       = "step"
	URL        = "url"
	Selector   = "selector"
)
