// Package command parses the command suffixes of a user line, e.g.
// "fix this!include(src)!deploy", and turns them into a per-request plan.
package command

import (
	"strings"
	"unicode"
)

// DefaultSeparator splits the prompt from its commands.
const DefaultSeparator = "!@#$"

// Kind identifies a recognized command.
type Kind string

const (
	KindContinue Kind = "continue"
	KindReset    Kind = "reset"
	KindFollowup Kind = "followup"
	KindInclude  Kind = "include"
	KindDeploy   Kind = "deploy"
)

var knownKinds = map[string]Kind{
	"continue": KindContinue,
	"reset":    KindReset,
	"followup": KindFollowup,
	"include":  KindInclude,
	"deploy":   KindDeploy,
}

// Command is one parsed command.
type Command struct {
	Kind   Kind
	Arg    string
	HasArg bool
}

func (c Command) String() string {
	return string(c.Kind) + "(" + c.Arg + ")"
}

// Parsed is a user line split into its prompt and commands.
type Parsed struct {
	Prompt       string
	Commands     []Command
	HasSeparator bool
}

// Parse splits line on sep. The first segment is the prompt. Each further
// segment is a command of the form name or name(arg); an empty segment is a
// bare include. Segments that are not commands are appended back to the
// prompt, separator included, so nothing the user typed is lost.
func Parse(line, sep string) Parsed {
	if sep == "" {
		sep = DefaultSeparator
	}

	segments := strings.Split(line, sep)
	prompt := segments[0]
	p := Parsed{HasSeparator: len(segments) > 1}

	for _, seg := range segments[1:] {
		cmd, ok := parseSegment(seg)
		if !ok {
			prompt += sep + seg
			continue
		}
		p.Commands = append(p.Commands, cmd)
	}
	p.Prompt = strings.TrimSpace(prompt)
	return p
}

// parseSegment parses `name`, `name(arg)`, `name arg` and the unbalanced
// variants of the parenthesized form. Quotes around arg are dropped.
func parseSegment(seg string) (Command, bool) {
	lx := lexer{input: strings.TrimSpace(seg)}
	if lx.done() {
		return Command{Kind: KindInclude}, true
	}

	name := lx.ident()
	kind, ok := knownKinds[strings.ToLower(name)]
	if !ok {
		return Command{}, false
	}

	lx.skipSpace()
	if lx.done() {
		return Command{Kind: kind}, true
	}

	// Anything glued to the name other than "(" makes this plain text,
	// e.g. "includes" or "deploy-ish".
	if lx.pos == len(name) && lx.peek() != '(' {
		return Command{}, false
	}

	arg := lx.rest()
	arg = strings.TrimPrefix(arg, "(")
	arg = strings.TrimSuffix(strings.TrimSpace(arg), ")")
	arg = unquote(strings.TrimSpace(arg))
	return Command{Kind: kind, Arg: arg, HasArg: arg != ""}, true
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) done() bool { return l.pos >= len(l.input) }

func (l *lexer) peek() byte { return l.input[l.pos] }

func (l *lexer) ident() string {
	start := l.pos
	for !l.done() && isIdentByte(l.peek()) {
		l.pos++
	}
	return l.input[start:l.pos]
}

func (l *lexer) skipSpace() {
	for !l.done() && unicode.IsSpace(rune(l.peek())) {
		l.pos++
	}
}

func (l *lexer) rest() string {
	s := l.input[l.pos:]
	l.pos = len(l.input)
	return s
}

func isIdentByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func unquote(s string) string {
	for _, q := range []string{`"`, `'`, "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[1 : len(s)-1]
		}
	}
	return strings.Trim(s, "\"'`")
}
