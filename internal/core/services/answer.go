package services

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// Prompt placeholders.
const (
	placeholderContext  = "{{context}}"
	placeholderQuestion = "{{question}}"
	placeholderHistory  = "{{history}}"
)

const (
	truncationMarker = "...\n[Content truncated]"
	noResponseText   = "I couldn't generate a response."
	contextSeparator = "\n\n"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.*?)\*`)
	codePattern   = regexp.MustCompile("`(.*?)`")
)

// AnswerOptions holds the budgets and generation parameters for answering.
type AnswerOptions struct {
	MaxContextChars    int
	MaxAttachmentChars int
	HistoryTurns       int
	Temperature        float64
	MaxTokens          int
}

// AnswerOptionsFromSettings maps resolved settings to answer options.
func AnswerOptionsFromSettings(s *domain.AppSettings) AnswerOptions {
	return AnswerOptions{
		MaxContextChars:    s.QA.MaxContextChars,
		MaxAttachmentChars: s.QA.MaxAttachmentChars,
		HistoryTurns:       s.QA.HistoryTurns,
		Temperature:        s.LLM.Temperature,
		MaxTokens:          s.LLM.MaxTokens,
	}
}

// AnswerService assembles a bounded prompt from retrieved chunks and an
// optional attachment and asks the LLM to answer it.
type AnswerService struct {
	llm       driven.LLMService
	retriever driving.RetrievalService
	prompts   driven.PromptStore
	opts      AnswerOptions
}

// NewAnswerService creates an answer service.
func NewAnswerService(
	llm driven.LLMService,
	retriever driving.RetrievalService,
	prompts driven.PromptStore,
	opts AnswerOptions,
) *AnswerService {
	return &AnswerService{
		llm:       llm,
		retriever: retriever,
		prompts:   prompts,
		opts:      opts,
	}
}

// Ask retrieves context for the question and answers it.
func (s *AnswerService) Ask(
	ctx context.Context, question string, attachment *domain.Attachment, conv domain.Conversation,
) domain.Answer {
	logger.Section("Ask")

	chunks, err := s.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		return failedAnswer(err, nil, attachment, false)
	}

	return s.Answer(ctx, driving.AnswerRequest{
		Question:     question,
		Chunks:       chunks,
		Attachment:   attachment,
		Conversation: conv,
	})
}

// Answer renders the prompt and generates an answer.
func (s *AnswerService) Answer(ctx context.Context, req driving.AnswerRequest) domain.Answer {
	question := strings.TrimSpace(req.Question)

	section, truncated := attachmentSection(req.Attachment, s.opts.MaxAttachmentChars, s.opts.MaxContextChars)
	used, contextText := buildContext(section, req.Chunks, s.opts.MaxContextChars)
	logger.Debug("context: %d of %d chunks, %d chars, attachment truncated=%t",
		len(used), len(req.Chunks), utf8.RuneCountInString(contextText), truncated)

	template, err := s.prompts.Load(driven.PromptAnswer)
	if err != nil {
		return failedAnswer(fmt.Errorf("load prompt: %w", err), used, req.Attachment, truncated)
	}

	history := req.Conversation.Recent(s.opts.HistoryTurns)
	inline := strings.Contains(template, placeholderHistory)
	prompt := renderPrompt(template, contextText, question, history)

	var output string
	if len(history) > 0 && !inline {
		output, err = s.llm.Chat(ctx, chatMessages(history, prompt), driven.GenerationOptions{
			MaxTokens:   s.opts.MaxTokens,
			Temperature: s.opts.Temperature,
		})
	} else {
		output, err = s.llm.Generate(ctx, prompt, driven.GenerationOptions{
			MaxTokens:   s.opts.MaxTokens,
			Temperature: s.opts.Temperature,
		})
	}
	if err != nil {
		logger.Warn("generation failed: %v", err)
		return failedAnswer(err, used, req.Attachment, truncated)
	}

	text := Sanitize(output)
	if strings.TrimSpace(text) == "" {
		text = noResponseText
	}
	answer := domain.Answer{
		Text:       text,
		UsedChunks: used,
		Truncated:  truncated,
	}
	if req.Attachment != nil {
		answer.AttachmentName = req.Attachment.Name
		answer.Text = fmt.Sprintf("*[Analyzed with uploaded file: %s]*\n\n%s", req.Attachment.Name, answer.Text)
	}
	return answer
}

// Sanitize reduces markdown emphasis (**x**, *x*, `x`) to its inner text.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	return codePattern.ReplaceAllString(text, "$1")
}

// ErrorText is the displayable message for a failed answer.
func ErrorText(err error) string {
	return "Error generating response: " + err.Error()
}

func failedAnswer(err error, used []domain.RetrievedChunk, attachment *domain.Attachment, truncated bool) domain.Answer {
	answer := domain.Answer{
		Text:       ErrorText(err),
		UsedChunks: used,
		Truncated:  truncated,
		Err:        err,
	}
	if attachment != nil {
		answer.AttachmentName = attachment.Name
	}
	return answer
}

// attachmentSection renders the attachment block, cutting the text to
// maxChars runes followed by the truncation marker. The text is cut further
// when the block would not fit in budget, so the block never exceeds it.
func attachmentSection(a *domain.Attachment, maxChars, budget int) (string, bool) {
	if a == nil || strings.TrimSpace(a.Text) == "" {
		return "", false
	}

	header := fmt.Sprintf("Content from %s:\n", a.Name)
	headerLen := utf8.RuneCountInString(header)
	markerLen := utf8.RuneCountInString(truncationMarker)

	n := utf8.RuneCountInString(a.Text)
	limit := n
	if maxChars > 0 {
		limit = min(limit, maxChars)
	}
	if budget > 0 {
		extra := 0
		if limit < n {
			extra = markerLen
		}
		if headerLen+limit+extra > budget {
			limit = max(budget-headerLen-markerLen, 0)
		}
	}

	if limit >= n {
		return header + a.Text, false
	}
	section := header + string([]rune(a.Text)[:limit]) + truncationMarker
	if budget > 0 && utf8.RuneCountInString(section) > budget {
		section = string([]rune(section)[:budget])
	}
	return section, true
}

// buildContext joins the attachment section and chunk texts with blank lines.
// While the result exceeds budget the lowest-scoring chunk is dropped; the
// survivors keep descending score order. The attachment is always kept.
func buildContext(section string, chunks []domain.RetrievedChunk, budget int) ([]domain.RetrievedChunk, string) {
	used := slices.Clone(chunks)
	slices.SortStableFunc(used, func(a, b domain.RetrievedChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})

	size := func() int {
		n := 0
		parts := 0
		if section != "" {
			n += utf8.RuneCountInString(section)
			parts++
		}
		for _, c := range used {
			n += utf8.RuneCountInString(c.Chunk.Content)
			parts++
		}
		if parts > 1 {
			n += (parts - 1) * len(contextSeparator)
		}
		return n
	}

	if budget > 0 {
		for len(used) > 0 && size() > budget {
			used = used[:len(used)-1]
		}
	}

	parts := make([]string, 0, len(used)+1)
	if section != "" {
		parts = append(parts, section)
	}
	for _, c := range used {
		parts = append(parts, c.Chunk.Content)
	}
	if len(used) == 0 {
		used = nil
	}
	return used, strings.Join(parts, contextSeparator)
}

func renderPrompt(template, contextText, question string, history []domain.Turn) string {
	return strings.NewReplacer(
		placeholderContext, contextText,
		placeholderQuestion, question,
		placeholderHistory, renderHistory(history),
	).Replace(template)
}

func renderHistory(turns []domain.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch t.Role {
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

func chatMessages(history []domain.Turn, prompt string) []driven.ChatMessage {
	messages := make([]driven.ChatMessage, 0, len(history)+1)
	for _, t := range history {
		if t.Content == "" {
			continue
		}
		messages = append(messages, driven.ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	return append(messages, driven.ChatMessage{Role: string(domain.RoleUser), Content: prompt})
}
