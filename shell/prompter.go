package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrInputClosed ends the shell when the input reaches EOF or the user
// interrupts the prompt.
var ErrInputClosed = errors.New("[shell] input closed")

type MenuOption struct {
	Key         string
	Description string
}

type Prompter interface {
	// Choose returns the key of the picked option.
	Choose(options []MenuOption) (string, error)
	// Ask returns the answer without the line terminator.
	Ask(label string) (string, error)
}

var _ Prompter = (*LinePrompter)(nil)

// LinePrompter reads answers line by line, it serves pipes and tests.
type LinePrompter struct {
	r *bufio.Reader
	w io.Writer
}

func NewLinePrompter(r io.Reader, w io.Writer) *LinePrompter {
	return &LinePrompter{r: bufio.NewReader(r), w: w}
}

func (p *LinePrompter) readLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *LinePrompter) Choose(options []MenuOption) (string, error) {
	fmt.Fprintln(p.w, "Menu:")
	for _, o := range options {
		fmt.Fprintf(p.w, "%s. %s\n", o.Key, o.Description)
	}
	fmt.Fprintln(p.w)
	for {
		fmt.Fprintf(p.w, "Enter your choice (1-%d): ", len(options))
		choice, err := p.readLine()
		if err != nil {
			return "", err
		}
		for _, o := range options {
			if o.Key == choice {
				return choice, nil
			}
		}
		fmt.Fprintf(p.w, "Invalid choice. Please enter a number from 1 to %d.\n", len(options))
	}
}

func (p *LinePrompter) Ask(label string) (string, error) {
	fmt.Fprint(p.w, label)
	return p.readLine()
}

var _ Prompter = (*InteractivePrompter)(nil)

// InteractivePrompter renders the menu as an arrow-key selection.
type InteractivePrompter struct {
	stdin  io.ReadCloser
	stdout io.WriteCloser
}

func NewInteractivePrompter(stdin io.ReadCloser, stdout io.WriteCloser) *InteractivePrompter {
	return &InteractivePrompter{stdin: stdin, stdout: stdout}
}

func promptErr(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, io.EOF) {
		return ErrInputClosed
	}
	return err
}

func (p *InteractivePrompter) Choose(options []MenuOption) (string, error) {
	items := make([]string, 0, len(options))
	for _, o := range options {
		items = append(items, o.Key+". "+o.Description)
	}
	sel := &promptui.Select{
		Label:  "Menu",
		Items:  items,
		Size:   len(items),
		Stdin:  p.stdin,
		Stdout: p.stdout,
	}
	idx, _, err := sel.Run()
	if err != nil {
		return "", promptErr(err)
	}
	return options[idx].Key, nil
}

func (p *InteractivePrompter) Ask(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:  strings.TrimSuffix(strings.TrimSpace(label), ":"),
		Stdin:  p.stdin,
		Stdout: p.stdout,
	}
	answer, err := prompt.Run()
	if err != nil {
		return "", promptErr(err)
	}
	return answer, nil
}
