// Package protocol defines the messages exchanged with an out-of-line execution
// context and the state machine that serves them.
package protocol

// CommandKind discriminates commands sent to an execution context.
type CommandKind string

const (
	CommandInit    CommandKind = "INIT"
	CommandCompute CommandKind = "COMPUTE"
)

// Command is a request crossing the execution-context boundary.
//
// INIT carries Config and no correlation id. COMPUTE carries a non-zero
// CorrelationID, Params and Payload.
type Command struct {
	Kind          CommandKind `json:"command"`
	CorrelationID uint64      `json:"correlationId,omitempty"`
	Config        any         `json:"config,omitempty"`
	Params        any         `json:"params,omitempty"`
	Payload       []byte      `json:"payload,omitempty"`
}

// Status discriminates replies.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusComputed    Status = "COMPUTED"
	StatusError       Status = "ERROR"
)

// Reply is a response crossing the execution-context boundary.
// Replies to COMPUTE echo the command's CorrelationID; replies to INIT carry none (zero).
type Reply struct {
	Status        Status `json:"status"`
	CorrelationID uint64 `json:"correlationId,omitempty"`
	Result        any    `json:"result,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// Init builds an INIT command.
func Init(config any) Command {
	return Command{Kind: CommandInit, Config: config}
}

// Compute builds a COMPUTE command.
func Compute(id uint64, params any, payload []byte) Command {
	return Command{Kind: CommandCompute, CorrelationID: id, Params: params, Payload: payload}
}

// Initialized builds an INITIALIZED reply.
func Initialized() Reply {
	return Reply{Status: StatusInitialized}
}

// Computed builds a COMPUTED reply.
func Computed(id uint64, result any) Reply {
	return Reply{Status: StatusComputed, CorrelationID: id, Result: result}
}

// Failed builds an ERROR reply. id is zero for INIT failures.
func Failed(id uint64, detail string) Reply {
	return Reply{Status: StatusError, CorrelationID: id, Detail: detail}
}
