package realtime

// Session is a single live client connection able to receive pushed
// payloads. Implementations must be safe for concurrent Send calls.
type Session interface {
	ID() string
	UserID() string
	Send(payload []byte) error
	Alive() bool
}
