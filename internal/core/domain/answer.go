package domain

// Answer is the result of answering one question.
type Answer struct {
	// Text is the displayable answer, or the error message when Err is set.
	Text string

	// UsedChunks are the retrieved chunks that fit the context budget,
	// in descending score order.
	UsedChunks []RetrievedChunk

	// Truncated reports that the attachment was cut to the budget.
	Truncated bool

	// AttachmentName is the attachment the answer was analysed with.
	AttachmentName string

	// Err is set when generation failed. Text then carries a
	// human-readable message instead of an answer.
	Err error
}

// Failed returns true if the answer is an error result.
func (a Answer) Failed() bool {
	return a.Err != nil
}
