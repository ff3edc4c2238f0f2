// Package cmds holds the artico terminal commands.
package cmds

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"artico/internal/client"
	"artico/internal/logging"
	"artico/internal/session"
)

const (
	keyServer   = "server"
	keyTimeout  = "timeout"
	keyWS       = "ws"
	keyLogLevel = "log-level"
	keyRender   = "render"
	keyCopy     = "copy"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "artico",
		Short:         "Stream AI-written articles and chat about them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(os.Stderr, viper.GetString(keyLogLevel))
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyServer, "http://localhost:8080", "Relay base URL")
	flags.Duration(keyTimeout, client.DefaultTimeout, "Hard timeout for each streamed request")
	flags.Bool(keyWS, false, "Stream chat replies over the WebSocket relay")
	flags.String(keyLogLevel, "warn", "Log level (debug, info, warn, error)")
	cobra.CheckErr(viper.BindPFlags(flags))

	root.AddCommand(newArticleCmd(), newChatCmd())
	return root
}

func initConfig() {
	viper.SetEnvPrefix("ARTICO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	cobra.OnInitialize(initConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		root.PrintErrln("Error:", err)
	}
	return err
}

func newSession() *session.Session {
	c := client.New(
		viper.GetString(keyServer),
		client.WithTimeout(viper.GetDuration(keyTimeout)),
	)
	return session.New(c, viper.GetBool(keyWS))
}
