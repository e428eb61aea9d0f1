package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"scout/internal/cli"
)

// chat runs the interactive loop until quit, end of input or interrupt.
func (a *app) chat(ctx context.Context) error {
	readLine := a.lineReader()

	a.out.WriteColored("Scout research assistant\n", cli.ColorBold+cli.ColorCyan)
	a.out.WriteLine("Type 'quit' to exit, 'reset' to clear the conversation.")
	if a.store != nil {
		a.out.WriteColored(fmt.Sprintf("Conversation: %s\n", a.session.id), cli.ColorGray)
	}
	a.out.WriteLine("")

	for {
		line, err := readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.out.WriteLine("\nGoodbye!")
				return nil
			}
			return err
		}

		query := strings.TrimSpace(line)
		switch strings.ToLower(query) {
		case "":
			continue
		case "quit", "exit", "q":
			a.out.WriteLine("\nGoodbye!")
			return nil
		case "reset":
			if err := a.session.reset(ctx); err != nil {
				a.log.Warn("Stored conversation not cleared: %v", err)
			}
			a.out.WriteLine("Conversation history cleared.\n")
			continue
		}

		if err := a.ask(ctx, query, false); err != nil {
			if ctx.Err() != nil {
				a.out.WriteLine("\n\nGoodbye!")
				return nil
			}
			a.out.WriteColored(fmt.Sprintf("\nError: %v\n\n", err), cli.ColorRed)
		}
	}
}

// lineReader returns a function reading one line of user input. On a
// terminal it offers line editing and history; otherwise it reads plain
// lines from the shared stdin reader.
func (a *app) lineReader() func() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() (string, error) {
			a.out.WriteColored("You: ", cli.ColorBold+cli.ColorBlue)
			line, err := a.stdin.ReadString('\n')
			if errors.Is(err, io.EOF) && line != "" {
				return line, nil
			}
			return line, err
		}
	}

	t := term.NewTerminal(os.Stdin, "You: ")
	return func() (string, error) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return "", err
		}
		if width, height, err := term.GetSize(fd); err == nil {
			t.SetSize(width, height)
		}

		line, err := t.ReadLine()
		if restoreErr := term.Restore(fd, oldState); err == nil {
			err = restoreErr
		}
		return line, err
	}
}
