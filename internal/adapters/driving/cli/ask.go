package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

var askFile string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the corpus",
	Long: `Answers a question from the passages retrieved from the index.

With --file the text of a PDF, image or text file is attached to the
question. Without a question, an interactive session starts when stdin is a
terminal; otherwise one question is read per line from stdin.

Session commands:
  /file <path>  attach a file to the following questions
  /detach       drop the attachment
  /reset        forget the conversation
  /quit         leave`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "attach a document to the question")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}
	answers, err := r.Answers(cmd.Context())
	if err != nil {
		return err
	}

	s := &session{ctx: cmd.Context(), runtime: r, answers: answers}
	if askFile != "" {
		if err := s.attach(askFile); err != nil {
			return err
		}
	}

	if len(args) > 0 {
		answer := s.ask(strings.Join(args, " "))
		if answer.Failed() {
			return fmt.Errorf("answer failed: %w", answer.Err)
		}
		printAnswer(cmd.OutOrStdout(), answer)
		return nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return s.interactive(f, cmd.OutOrStdout())
	}
	return s.lines(cmd.InOrStdin(), cmd.OutOrStdout())
}

// session holds the conversation of one ask run.
type session struct {
	ctx        context.Context
	runtime    Runtime
	answers    driving.AnswerService
	attachment *domain.Attachment
	conv       domain.Conversation
}

func (s *session) attach(path string) error {
	att, err := s.runtime.Attachment(s.ctx, path)
	if err != nil {
		return fmt.Errorf("attaching %s: %w", path, err)
	}
	s.attachment = att
	return nil
}

func (s *session) ask(question string) domain.Answer {
	answer := s.answers.Ask(s.ctx, question, s.attachment, s.conv)
	if !answer.Failed() {
		s.conv = s.conv.Append(
			domain.Turn{Role: domain.RoleUser, Content: question, Attachment: s.attachment},
			domain.Turn{Role: domain.RoleAssistant, Content: answer.Text},
		)
	}
	return answer
}

// handle runs one line of input and reports whether the session should end.
func (s *session) handle(line string, w io.Writer) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == "/quit" || line == "/exit":
		return true
	case line == "/reset":
		s.conv = domain.Conversation{}
		fmt.Fprintln(w, "Conversation cleared.")
	case line == "/detach":
		s.attachment = nil
		fmt.Fprintln(w, "Attachment removed.")
	case strings.HasPrefix(line, "/file "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
		if err := s.attach(path); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			break
		}
		fmt.Fprintf(w, "Attached %s (%d characters).\n", s.attachment.Name, len([]rune(s.attachment.Text)))
	case strings.HasPrefix(line, "/"):
		fmt.Fprintf(w, "Unknown command %s\n", line)
	default:
		printAnswer(w, s.ask(line))
	}
	return false
}

func (s *session) lines(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s.handle(scanner.Text(), w) {
			return nil
		}
	}
	return scanner.Err()
}

func (s *session) interactive(f *os.File, w io.Writer) error {
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return s.lines(f, w)
	}
	defer term.Restore(fd, state) //nolint:errcheck

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{f, w}, "lexis> ")
	fmt.Fprintln(t, "Ask a question, or /quit to leave.")

	for {
		line, err := t.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.handle(line, t) {
			return nil
		}
	}
}

func printAnswer(w io.Writer, answer domain.Answer) {
	fmt.Fprintln(w, answer.Text)
	if answer.Truncated {
		fmt.Fprintf(w, "\n(%s was truncated to fit the context)\n", answer.AttachmentName)
	}

	var sources []string
	seen := make(map[string]bool)
	for _, rc := range answer.UsedChunks {
		name := sourceName(rc.Chunk)
		if !seen[name] {
			seen[name] = true
			sources = append(sources, name)
		}
	}
	if len(sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(sources, ", "))
	}
	fmt.Fprintln(w)
}
