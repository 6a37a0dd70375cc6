package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/eduai-mentor/internal/app"
	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/mentor/session"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Tutor yourself from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, log, Version)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.Close(closeCtx)
			}()
			return runChat(cmd.Context(), a.Controller, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "cli", "session id to continue")
	return cmd
}

// chatController is the part of *session.Controller the terminal loop drives.
type chatController interface {
	Submit(ctx context.Context, sessionID string, sub session.Submission) (session.Reply, error)
	GenerateCode(ctx context.Context, sessionID string, req session.CodeRequest) (session.CodeResult, error)
	Reset(ctx context.Context, sessionID string) (session.View, error)
}

const chatHelp = `Type an answer and press enter. Commands:
  /hint /explain /answer   ask for that phase next (optionally followed by text)
  /attach <url> [text]     send an uploaded file reference
  /code [cpp|python] [task] generate code
  /reset                   start the dialogue over (points are kept)
  /quit                    leave`

func runChat(ctx context.Context, ctrl chatController, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, chatHelp)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		cmd, rest := splitCommand(line)
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, chatHelp)
		case "/reset":
			v, err := ctrl.Reset(ctx, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "dialogue cleared. %d points (%s)\n", v.Ledger.Points, v.Ledger.Tier)
		case "/code":
			lang, task := splitCommand(rest)
			if lang != "cpp" && lang != "python" {
				lang, task = "", rest
			}
			res, err := ctrl.GenerateCode(ctx, sessionID, session.CodeRequest{Prompt: task, Language: lang})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "```%s\n%s\n```\n", res.Language, res.Code)
		case "/attach":
			ref, text := splitCommand(rest)
			if err := submit(ctx, ctrl, sessionID, session.Submission{Text: text, AttachmentRef: ref}, out); err != nil {
				return err
			}
		case "/hint", "/explain", "/answer":
			phase := strings.TrimPrefix(cmd, "/")
			if err := submit(ctx, ctrl, sessionID, session.Submission{Text: rest, Phase: phase}, out); err != nil {
				return err
			}
		default:
			if strings.HasPrefix(cmd, "/") {
				fmt.Fprintf(out, "unknown command %s, try /help\n", cmd)
				continue
			}
			if err := submit(ctx, ctrl, sessionID, session.Submission{Text: line}, out); err != nil {
				return err
			}
		}
	}
}

func submit(ctx context.Context, ctrl chatController, sessionID string, sub session.Submission, out io.Writer) error {
	r, err := ctrl.Submit(ctx, sessionID, sub)
	if err != nil {
		return err
	}
	if r.Skipped {
		fmt.Fprintln(out, "say something first.")
		return nil
	}
	fmt.Fprintf(out, "\n%s\n\n[%s %d%%] %d points (%s)\n", r.Reply, phaseLabel(r.Phase), r.Progress, r.Ledger.Points, r.Ledger.Tier)
	return nil
}

func phaseLabel(p mentor.Phase) string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(p.String()[:1]) + p.String()[1:]
}

func splitCommand(s string) (string, string) {
	s = strings.TrimSpace(s)
	head, tail, _ := strings.Cut(s, " ")
	return head, strings.TrimSpace(tail)
}
