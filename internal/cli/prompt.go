package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// prompter asks questions on w and reads single-line answers from r.
// End of input reads as an empty answer.
type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func newPrompter(r io.Reader, w io.Writer) *prompter {
	return &prompter{r: bufio.NewReader(r), w: w}
}

func (p *prompter) ask(question string) (string, error) {
	if _, err := io.WriteString(p.w, question); err != nil {
		return "", fmt.Errorf("writing prompt: %w", err)
	}

	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading answer: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
