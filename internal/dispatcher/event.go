package dispatcher

import "go-hh-autoreply/internal/chat"

type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventButton
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventButton:
		return "button"
	}
	return "unknown"
}

// Event is one inbound chat event. MessageID is the message a button
// belongs to, for in-place edits.
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	MessageID int

	// Command is the name without the slash, Args the rest of the line.
	Command string
	Args    string
	Text    string
	Action  chat.Action
}

func Command(userID, chatID int64, name, args string) Event {
	return Event{Kind: EventCommand, UserID: userID, ChatID: chatID, Command: name, Args: args}
}

func Text(userID, chatID int64, text string) Event {
	return Event{Kind: EventText, UserID: userID, ChatID: chatID, Text: text}
}

func Button(userID, chatID int64, messageID int, a chat.Action) Event {
	return Event{Kind: EventButton, UserID: userID, ChatID: chatID, MessageID: messageID, Action: a}
}
