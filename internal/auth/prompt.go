package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TerminalPrompter) PromptCode(_ context.Context, authURL string) (string, error) {
	fmt.Fprintf(p.Out, "Open this URL in your browser and authorize the app:\n\n  %s\n\n", authURL)
	fmt.Fprint(p.Out, "Paste the code or the full redirect URL: ")

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ParseCode accepts either a bare authorization code or the redirect URL
// carrying it. A state in the URL must match the one that was sent.
func ParseCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.Contains(input, "code=") && !strings.Contains(input, "error=") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if u.RawQuery == "" {
		q, err = url.ParseQuery(input)
		if err != nil {
			return "", fmt.Errorf("parse redirect query: %w", err)
		}
	}
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	if got := q.Get("state"); got != "" && got != state {
		return "", errors.New("authorization state mismatch")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}
