package domain

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Attachment is document text uploaded alongside a question.
type Attachment struct {
	// Name is the uploaded file name.
	Name string

	// Text is the extracted text of the file.
	Text string
}

// Turn is one message of a conversation.
type Turn struct {
	Role       Role
	Content    string
	Attachment *Attachment
}

// Conversation is the ordered history a question is asked in.
// It is passed explicitly; answering never reads ambient session state.
type Conversation struct {
	Turns []Turn
}

// Append returns a copy of the conversation with turns added.
// The receiver is not modified.
func (c Conversation) Append(turns ...Turn) Conversation {
	out := make([]Turn, 0, len(c.Turns)+len(turns))
	out = append(out, c.Turns...)
	out = append(out, turns...)
	return Conversation{Turns: out}
}

// Recent returns at most n of the latest turns, oldest first.
func (c Conversation) Recent(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(c.Turns) <= n {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}
