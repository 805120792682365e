package chat

type OutKind int

const (
	None OutKind = iota
	Send
	Edit
	Answer
)

// Outbound is the single reply to one inbound event. Text is Telegram HTML.
// Send posts a new message, Edit rewrites the message the button belongs to,
// Answer shows a short notice on the pressed button.
type Outbound struct {
	Kind     OutKind
	Text     string
	Keyboard *Keyboard
	// Preview enables link previews on Send/Edit.
	Preview bool
}

func NoReply() Outbound {
	return Outbound{Kind: None}
}

func SendText(text string, kb *Keyboard) Outbound {
	return Outbound{Kind: Send, Text: text, Keyboard: kb}
}

func EditText(text string, kb *Keyboard) Outbound {
	return Outbound{Kind: Edit, Text: text, Keyboard: kb}
}

func AnswerText(text string) Outbound {
	return Outbound{Kind: Answer, Text: text}
}

// Button is either a callback button (Data) or a link (URL).
type Button struct {
	Text string
	Data string
	URL  string
}

type Keyboard struct {
	Rows [][]Button
}

func ActionButton(text string, a Action) Button {
	return Button{Text: text, Data: a.Token()}
}

func LinkButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

// Column lays buttons out one per row.
func Column(buttons ...Button) *Keyboard {
	kb := &Keyboard{}
	for _, b := range buttons {
		kb.Rows = append(kb.Rows, []Button{b})
	}
	return kb
}
