package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/connection"
	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/relay"
)

func newSendCmd(v *viper.Viper) *cobra.Command {
	var replyWait time.Duration

	cmd := &cobra.Command{
		Use:   "send <line>",
		Short: "Send one raw command to a running recognizer and print its replies",
		Example: `  mudra send GET_GESTURES
  mudra send RECORD:wave --wait 10s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return sendLine(cmd.Context(), cfg, args[0], replyWait, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&replyWait, "wait", 2*time.Second, "How long to print replies")
	return cmd
}

// sendLine makes a single connection attempt, sends line and prints every
// reply until wait elapses or the recognizer hangs up.
func sendLine(ctx context.Context, cfg *config.Config, line string, wait time.Duration, out io.Writer) error {
	connector := connection.NewConnector(connection.Config{DialTimeout: cfg.DialTimeout}, nil, nil)
	sock, err := connector.Connect(ctx, cfg.Host, cfg.Port, connection.NewRetryCounter(1))
	if err != nil {
		return err
	}
	defer sock.Close()

	rel := relay.New(sock, nil)
	rel.OnUnrecognized = func(l string) {
		fmt.Fprintf(out, "?\t%s\n", l)
	}
	if err := rel.Send(line); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	go func() {
		<-ctx.Done()
		sock.Close()
	}()

	err = rel.ReceiveLoop(ctx, func(msg protocol.Message) {
		fmt.Fprintf(out, "%s\t%s\n", msg.Kind, msg.Raw)
	})
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		// The recognizer hung up after replying.
		return nil
	}
	return err
}
