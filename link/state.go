package link

//go:generate go tool stringer -type=State

// State is the state of the transfer state machine.
type State uint8

const (
	// Idle means no transfer is outstanding.
	Idle State = iota
	// Starting means a clock request went out and the reply is awaited.
	Starting
	// Finished means both bytes are known and completion is scheduled.
	Finished
)

// A TransferRequest describes the transfer in progress, from the clock
// request to the completion.
type TransferRequest struct {
	Initiator Role
	// Payload is the byte sent by the initiator, Response is the byte sent
	// back, valid only if Answered.
	Payload  uint8
	Response uint8
	Answered bool
}
