package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const defaultHistoryLimit = 10

// RunInteractive reads commands from in until quit, EOF or cancellation.
//
//	get [name]     submit the GET form; without a name the name input is used,
//	               and "" sends an empty name
//	post [name]    submit the POST form; without a name the post name input is used
//	wait           block until every in-flight submission has rendered
//	history [n]    print the n most recent exchanges
//	quit           stop reading
//
// Submissions are not awaited between commands, so a slow response never
// blocks the next one.
func (s *Session) RunInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("session is not initialized")
	}
	if out == nil {
		out = io.Discard
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stopped:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.log.InfoObj("interactive loop starting", "session_state", map[string]any{
		"base_url":    s.cfg.BaseURL,
		"sinks_count": s.fanout.Size(),
	})

	for {
		select {
		case <-ctx.Done():
			s.log.InfoObj("interactive loop exiting", "reason", ctx.Err())
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read commands: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := s.handleCommand(ctx, line, out); quit {
				return nil
			}
		}
	}
}

// handleCommand executes a single command line and reports whether to stop.
func (s *Session) handleCommand(ctx context.Context, line string, out io.Writer) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "get":
		s.Get(ctx, optionalName(arg))
	case "post":
		s.Post(ctx, optionalName(arg))
	case "wait":
		s.client.Wait()
	case "history":
		limit := defaultHistoryLimit
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				fmt.Fprintf(out, "invalid history limit %q\n", arg)
				return false
			}
			limit = n
		}
		if err := s.PrintHistory(out, limit); err != nil {
			s.log.ErrorObj("history read failed", "error", err)
		}
	case "quit", "exit":
		return true
	default:
		s.log.WarnObj("unknown command", "command", cmd)
		fmt.Fprintf(out, "unknown command %q (get, post, wait, history, quit)\n", cmd)
	}
	return false
}

// PrintHistory writes the most recent exchanges to out, newest first.
func (s *Session) PrintHistory(out io.Writer, limit int) error {
	entries, err := s.History(limit)
	if err != nil {
		return err
	}
	for _, ex := range entries {
		outcome := fmt.Sprintf("%d bytes", ex.Bytes)
		if ex.Failed() {
			outcome = "error: " + ex.Error
		}
		fmt.Fprintf(out, "%s %-4s %-40s %3d %s\n",
			ex.StartedAt.Local().Format(time.DateTime),
			ex.Operation,
			ex.URL,
			ex.StatusCode,
			outcome,
		)
	}
	return nil
}

// optionalName maps a command argument to a submission name. No argument
// means "read the input"; a quoted empty string is an explicit empty name.
func optionalName(arg string) *string {
	switch arg {
	case "":
		return nil
	case `""`, "''":
		empty := ""
		return &empty
	}
	return &arg
}
