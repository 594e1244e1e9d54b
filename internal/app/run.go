package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	cmdDelete = ":delete"
	cmdStatus = ":status"
)

// Run is the console mode. Each input line is a question, except that a path to an
// existing file uploads it as the user document, ":delete" drops the user document and
// ":status" prints the corpus state.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	a.logger.Info("Console started")
	fmt.Fprintln(out, "Ask a question, or enter a file path to chat with that document. Ctrl+C to exit.")

	scanner := bufio.NewScanner(in)

	const maxLineSize = 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutting down console")
			return nil
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("stdin error: %w", err)
				}
				a.logger.Debug("stdin closed")
				return nil
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			a.handleLine(ctx, line, out)
		}
	}
}

func (a *App) handleLine(ctx context.Context, line string, out io.Writer) {
	switch line {
	case cmdDelete:
		if err := a.machine.DeleteUserData(); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return
		}
		fmt.Fprintln(out, "User data deleted.")
		return
	case cmdStatus:
		st := a.machine.Status()
		fmt.Fprintf(out, "state=%s using_user_file=%t user_file=%q user_chunks=%d system_chunks=%d\n",
			st.State, a.machine.UsingUserFile(), st.UserFile, st.UserChunks, st.SystemChunks)
		return
	}

	if info, err := os.Stat(line); err == nil && !info.IsDir() {
		a.handleFile(ctx, line, out)
		return
	}

	ans, err := a.machine.Ask(ctx, line)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	source := "system documents"
	if ans.UsingUserFile {
		source = "your file"
	}
	fmt.Fprintf(out, "\n%s\n(answered from %s)\n\n", ans.Text, source)
}

func (a *App) handleFile(ctx context.Context, path string, out io.Writer) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	defer f.Close()

	if err := a.machine.Upload(ctx, filepath.Base(path), f); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	st := a.machine.Status()
	fmt.Fprintf(out, "Indexed %s (%d chunks). Questions now use this file.\n", st.UserFile, st.UserChunks)
}
