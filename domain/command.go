package domain

// SendCommand carries one message sending intent through the coordinator.
type SendCommand struct {
	Key             ConversationKey
	SenderID        string
	ClientMessageID string
	Text            string
}

// OpenCommand asks for the conversation between two participants,
// creating it if it does not exist yet.
type OpenCommand struct {
	SelfID  string
	OtherID string
}

// ReadCommand requests a page of messages after a cursor.
type ReadCommand struct {
	Key   ConversationKey
	Since Cursor
}
