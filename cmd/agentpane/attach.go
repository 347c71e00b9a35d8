package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/creack/pty"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/agentpane/agentpane/internal/emulator"
	"github.com/agentpane/agentpane/internal/termsync"
	"github.com/agentpane/agentpane/internal/transport"
)

func newAttachCmd() *cobra.Command {
	var cfgPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "attach <session-id>",
		Short: "Attach the terminal to a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			sessionID := args[0]
			cfg := loadConfig(cfgPath)
			if addr == "" {
				addr = cfg.Server.ListenAddr
			}

			cols, rows := localSize()

			wsURL := url.URL{
				Scheme: "ws",
				Host:   addr,
				Path:   "/ws",
				RawQuery: url.Values{
					"session": {sessionID},
					"cols":    {strconv.Itoa(cols)},
					"rows":    {strconv.Itoa(rows)},
				}.Encode(),
			}
			client, err := transport.Dial(ctx, wsURL.String())
			if err != nil {
				return err
			}
			defer client.Close()

			emu := emulator.New(cols, rows, cfg.Terminal.ScrollbackLines)
			emu.SetContainerSize(cols, rows)
			defer emu.Dispose()

			channel := transport.NewSessionChannel(client, sessionID)
			ctrl := termsync.New(sessionID, emu, channel,
				termsync.WithLogger(logger),
				termsync.WithConfig(termsync.Config{
					SeedTimeout:      cfg.Terminal.SeedTimeout(),
					HistoryCooldown:  cfg.Terminal.HistoryCooldown(),
					PollInterval:     cfg.Terminal.ScrollPollInterval(),
					ScrollbackLines:  cfg.Terminal.ScrollbackLines,
					WriteSeedContent: cfg.Terminal.WriteSeedContent,
				}),
				termsync.WithCallbacks(termsync.Callbacks{
					OnSeedReady: func() {
						logger.Info("session synchronized", "session", sessionID)
					},
					OnSeedTimeout: func(received, total int) {
						logger.Warn("snapshot incomplete, showing live stream",
							"received", received, "total", total)
					},
					OnOverflow: func(bytes int) {
						logger.Warn("snapshot overflow, switched to live stream", "bytes", bytes)
					},
				}),
			)
			ctrl.Start()
			defer ctrl.Close()

			client.Subscribe(transport.TypeSeedChunk, func(env transport.Envelope) {
				ctrl.OnSeedChunk(env.Chunk, env.TotalChunks, env.Data, seedMetaFrom(env))
			})
			client.Subscribe(transport.TypeData, func(env transport.Envelope) {
				ctrl.OnData(env.Seq, env.Data)
				os.Stdout.WriteString(env.Data)
			})
			client.Subscribe(transport.TypeHistoryFrame, func(env transport.Envelope) {
				ctrl.OnHistoryFrame(env.Seq, env.Data)
			})
			client.Subscribe(transport.TypeExit, func(env transport.Envelope) {
				logger.Info("session ended", "session", sessionID, "reason", env.Data)
				client.Close()
			})

			go forwardInput(client, channel)

			select {
			case <-ctx.Done():
			case <-client.Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "host address (overrides config)")
	return cmd
}

// localSize reads the controlling terminal's dimensions, falling back
// to 80x24 when stdin is not a terminal.
func localSize() (cols, rows int) {
	if ws, err := pty.GetsizeFull(os.Stdin); err == nil && ws.Cols > 0 && ws.Rows > 0 {
		return int(ws.Cols), int(ws.Rows)
	}
	return 80, 24
}

func seedMetaFrom(env transport.Envelope) *termsync.SeedMeta {
	if env.Cols == nil || env.Rows == nil {
		return nil
	}
	meta := &termsync.SeedMeta{Cols: *env.Cols, Rows: *env.Rows}
	if env.CursorX != nil {
		meta.CursorX = *env.CursorX
	}
	if env.CursorY != nil {
		meta.CursorY = *env.CursorY
	}
	if env.HasHistory != nil {
		meta.HasHistory = *env.HasHistory
	}
	return meta
}

// forwardInput pumps stdin to the remote pty until EOF or disconnect.
func forwardInput(client *transport.Client, channel *transport.SessionChannel) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			channel.SendInput(string(buf[:n]))
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(os.Stderr, "stdin read:", err)
			}
			client.Close()
			return
		}
	}
}
