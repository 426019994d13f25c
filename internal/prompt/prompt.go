// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package prompt asks the operator for input on a terminal.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

var ErrNoToken = errors.New("no token provided")

// Prompter reads answers from in and writes questions to out.  Secrets
// are read without echo when in is a terminal.
type Prompter struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
}

// New returns a Prompter reading from the file in, typically os.Stdin.
func New(in *os.File, out io.Writer) *Prompter {
	fd := int(in.Fd())
	return &Prompter{
		in:       bufio.NewReader(in),
		out:      out,
		fd:       fd,
		terminal: term.IsTerminal(fd),
	}
}

// NewReader returns a Prompter that never masks input.
func NewReader(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
}

// read runs fn, which may block on in, and gives up as soon as ctx is
// done.  An abandoned fn keeps its goroutine until input arrives or the
// process exits.
func (p *Prompter) read(ctx context.Context, fn func() (string, error)) (string, error) {
	type result struct {
		s   string
		err error
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ch := make(chan result, 1)
	go func() {
		s, err := fn()
		ch <- result{s, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.s, r.err
	}
}

// Line prints label and returns the next line of input, trimmed.
func (p *Prompter) Line(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.out, label)
	return p.read(ctx, func() (string, error) {
		line, err := p.in.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return "", err
		}
		return strings.TrimSpace(line), nil
	})
}

// Secret is like Line but does not echo input on a terminal.  Echo is
// turned back on if ctx ends the read early.
func (p *Prompter) Secret(ctx context.Context, label string) (string, error) {
	if !p.terminal {
		return p.Line(ctx, label)
	}
	state, err := term.GetState(p.fd)
	if err != nil {
		return "", errors.Wrap(err, "reading terminal state")
	}
	fmt.Fprint(p.out, label)
	secret, err := p.read(ctx, func() (string, error) {
		b, err := term.ReadPassword(p.fd)
		return strings.TrimSpace(string(b)), err
	})
	fmt.Fprintln(p.out)
	if ctx.Err() != nil {
		term.Restore(p.fd, state)
		return "", ctx.Err()
	}
	if err != nil {
		return "", errors.Wrap(err, "reading secret")
	}
	return secret, nil
}

// ConfirmWord prints message and reports whether the operator typed
// word, ignoring case and surrounding space.
func (p *Prompter) ConfirmWord(ctx context.Context, message, word string) (bool, error) {
	answer, err := p.Line(ctx, message)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, word), nil
}

// Count asks for a non-negative number.  An empty answer, or anything
// that is not a number, yields 0.
func (p *Prompter) Count(ctx context.Context, label string) (int, error) {
	answer, err := p.Line(ctx, label)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// TokenSource returns an oauth2.TokenSource that asks for the token
// with masked input.  tokenType is copied into the token, see package
// discordhttp.  Asking stops when ctx is done.
func (p *Prompter) TokenSource(ctx context.Context, label, tokenType string) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, p: p, label: label, tokenType: tokenType}
}

type tokenSource struct {
	ctx       context.Context
	p         *Prompter
	label     string
	tokenType string
}

// Token asks once.  An empty answer is an error rather than a retry,
// so a closed stdin cannot spin.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.p.Secret(s.ctx, s.label)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if tok == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: tok, TokenType: s.tokenType}, nil
}
