package domain

// SpokenBus is the observable side channel every produced message is
// emitted through, whether or not it is committed to memory.
type SpokenBus interface {
	Publish(msg SpokenMessage)
	Subscribe(name string, handler func(SpokenMessage))
	Unsubscribe(name string)
	Close()
}

// SpokenMessage wraps a spoken Message with turn metadata for transcript
// and logging subscribers.
type SpokenMessage struct {
	Message        Message
	ConversationID string
	Mode           Mode
	LatencyMs      int64
}
