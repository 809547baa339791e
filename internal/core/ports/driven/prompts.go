package driven

// PromptStore resolves prompt templates by name.
type PromptStore interface {
	// Load returns the user's template for name when one exists and is
	// usable, and the built-in template otherwise. Unknown names fail.
	Load(name string) (string, error)
}

// PromptAnswer is the question-answering template. It must contain
// {{question}} and {{context}}; {{history}} is optional.
const PromptAnswer = "answer"
