package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNoAnswer = errors.New("no answer given")

// Ask writes question to out and reads one line from in. Surrounding
// whitespace and a trailing .csv are removed.
func Ask(in io.Reader, out io.Writer, question string) (string, error) {
	if _, err := fmt.Fprint(out, question); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read answer: %w", err)
	}
	answer := strings.TrimSuffix(strings.TrimSpace(line), ".csv")
	if answer == "" {
		return "", ErrNoAnswer
	}
	return answer, nil
}

// Name returns preset when non-empty and asks otherwise.
func Name(preset string, in io.Reader, out io.Writer, question string) (string, error) {
	if preset != "" {
		return strings.TrimSuffix(preset, ".csv"), nil
	}
	return Ask(in, out, question)
}
