package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"artico/internal/session"
)

const articleFailedMessage = "Failed to generate the article. Please try again."

func newArticleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "article <topic>",
		Short: "Stream a freshly written article about a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := articleOptionsFromFlags(cmd)
			_, err := writeArticle(cmd.Context(), cmd.OutOrStdout(), newSession(), strings.Join(args, " "), opts)
			return err
		},
	}
	addArticleFlags(cmd)
	return cmd
}

type articleOptions struct {
	render bool
	copy   bool
}

func addArticleFlags(cmd *cobra.Command) {
	cmd.Flags().Bool(keyRender, false, "Render the finished article as markdown when writing to a terminal")
	cmd.Flags().Bool(keyCopy, false, "Copy the finished article to the clipboard")
}

func articleOptionsFromFlags(cmd *cobra.Command) articleOptions {
	render, _ := cmd.Flags().GetBool(keyRender)
	cp, _ := cmd.Flags().GetBool(keyCopy)
	return articleOptions{render: render && isTerminal(cmd.OutOrStdout()), copy: cp}
}

// writeArticle streams the article to out. With rendering on, the text is
// collected and printed once as styled markdown. It returns whether chat is
// available afterwards.
func writeArticle(ctx context.Context, out io.Writer, sess *session.Session, topic string, opts articleOptions) (bool, error) {
	onChunk := func(chunk string) { fmt.Fprint(out, chunk) }
	if opts.render {
		onChunk = nil
		fmt.Fprintln(out, "Writing...")
	}

	err := sess.GenerateArticle(ctx, topic, onChunk)
	if err != nil && !sess.ChatReady() {
		if errors.Is(err, session.ErrEmptyInput) {
			return false, err
		}
		fmt.Fprintln(out, articleFailedMessage)
		return false, err
	}

	article := sess.Article()
	if opts.render {
		rendered, rerr := renderMarkdown(article)
		if rerr != nil {
			log.Warn().Err(rerr).Msg("rendering article")
			rendered = article
		}
		fmt.Fprint(out, rendered)
	}
	fmt.Fprintln(out)

	if opts.copy {
		if cerr := clipboard.WriteAll(article); cerr != nil {
			log.Warn().Err(cerr).Msg("copying article to clipboard")
		} else {
			fmt.Fprintln(out, "Article copied to clipboard.")
		}
	}

	if err != nil {
		// Partial text stands; the stream was cut short.
		log.Warn().Err(err).Msg("article stream ended early")
	}
	return true, nil
}

func renderMarkdown(text string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
