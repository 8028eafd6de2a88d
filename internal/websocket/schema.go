package websocket

// Actions (Client -> Server)

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// Events (Server -> Client)

type Event string

const (
	EventTick    Event = "tick"
	EventExpired Event = "expired"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// TickResponse carries the authoritative remaining time once per second.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// ExpiredResponse tells the client the attempt window has elapsed. The
// server closes the stream right after sending it.
type ExpiredResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
