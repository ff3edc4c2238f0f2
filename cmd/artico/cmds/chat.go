package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"artico/internal/models"
	"artico/internal/session"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <topic>",
		Short: "Generate an article, then chat about it",
		Long: `Generate an article about a topic, then ask follow-up questions about it.
Each line read from standard input is sent as a message. An empty line is
ignored; "/quit" or end of input exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := newSession()
			out := cmd.OutOrStdout()

			ready, err := writeArticle(cmd.Context(), out, sess, strings.Join(args, " "), articleOptionsFromFlags(cmd))
			if !ready {
				return err
			}
			return chatLoop(cmd.Context(), sess, cmd.InOrStdin(), out)
		},
	}
	addArticleFlags(cmd)
	return cmd
}

func chatLoop(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "\nyou> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		}

		fmt.Fprint(out, "ai> ")
		printed := 0
		err := sess.Send(ctx, line, func(msgs []models.ChatMessage) {
			reply := msgs[len(msgs)-1].Content
			if len(reply) > printed {
				fmt.Fprint(out, reply[printed:])
				printed = len(reply)
			}
		})
		fmt.Fprintln(out)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, "The reply could not be completed.")
		}
	}
}
