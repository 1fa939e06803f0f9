package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/flight/pkg/client"
	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/rehydrate"
	"github.com/vango-dev/flight/pkg/render"
	"github.com/vango-dev/flight/pkg/server"
)

func fetchCmd() *cobra.Command {
	var (
		addr     string
		state    []string
		ws       bool
		timeout  time.Duration
		showData bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a segment stream from a running server",
		Long: `Request a segment stream and print its messages as they arrive.

Examples:
  flight fetch /posts/42
  flight fetch /posts/42 --state root,posts,7
  flight fetch /posts/42 --data
  flight fetch /posts/42 --ws --server http://localhost:8080`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var tr client.Transport = client.NewHTTPTransport(addr)
			if ws {
				wst := client.NewWSTransport(websocketURL(addr))
				defer wst.Close()
				tr = wst
			}
			resp, err := tr.Do(ctx, client.Request{URL: args[0], RouterState: state})
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			out := cmd.OutOrStdout()
			store := rehydrate.NewStore()
			if showData {
				unsubscribe := store.Subscribe(func(r rehydrate.Record) {
					fmt.Fprintf(out, "store    %s = %s\n", r.Key, r.Value)
				})
				defer unsubscribe()
			}
			return printStream(out, protocol.NewStreamReader(resp.Body), store)
		},
	}
	cmd.Flags().StringVar(&addr, "server", "http://localhost:3000", "Server origin")
	cmd.Flags().StringSliceVar(&state, "state", nil, "Segment keys the client already holds, root first")
	cmd.Flags().BoolVar(&ws, "ws", false, "Use the websocket transport")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")
	cmd.Flags().BoolVar(&showData, "data", false, "Print each value as the client store takes it")
	return cmd
}

func websocketURL(origin string) string {
	origin = strings.TrimSuffix(origin, "/")
	switch {
	case strings.HasPrefix(origin, "https://"):
		origin = "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		origin = "ws://" + strings.TrimPrefix(origin, "http://")
	}
	return origin + server.WebSocketPath
}

// printStream prints one line per message until End and applies data
// records to store.
func printStream(w io.Writer, sr *protocol.StreamReader, store *rehydrate.Store) error {
	for {
		m, err := sr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, describe(m))
		if rec, ok := m.(*protocol.Record); ok {
			store.Apply(*rec)
		}
	}
}

func describe(m protocol.Message) string {
	switch m := m.(type) {
	case *protocol.Head:
		return fmt.Sprintf("head     %s skipped=[%s]", m.Pathname, strings.Join(m.Skipped, ","))
	case *protocol.Segment:
		return fmt.Sprintf("segment  %d %s route=%s %s", m.Depth, m.Key, m.RouteID, render.RenderHTML(m.Node))
	case *protocol.Record:
		return fmt.Sprintf("data     %s %s", m.Key, m.Value)
	case *protocol.ModuleRef:
		return fmt.Sprintf("module   %s [%s]", m.ID, strings.Join(m.Chunks, ","))
	case *protocol.Redirect:
		return fmt.Sprintf("redirect %s", m.URL)
	case *protocol.NotFound:
		return fmt.Sprintf("notfound %s", m.Pathname)
	case *protocol.ErrorMessage:
		return fmt.Sprintf("error    %s", m.Error())
	case *protocol.End:
		return "end"
	}
	return m.FrameType().String()
}
