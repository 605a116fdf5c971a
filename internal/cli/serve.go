package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

var (
	serveAddr     string
	serveUsername string
	servePassword string
)

// serveCmd runs a local TDB-compatible endpoint that echoes every request.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local echo server speaking the TDB websocket protocol",
	Long: `The serve command starts a development server that accepts the TDB handshake,
checks the "authorization" header against --username and --password and
answers every request with the request envelope itself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		srvCfg := ws.DefaultServerConfig()
		srvCfg.Logger = logger
		srvCfg.Authorize = ws.StaticCredentials(serveUsername, servePassword)

		server := ws.NewServer(srvCfg)
		server.HandleDefault(ws.EchoHandler)

		ln, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		pterm.Info.Printfln("Listening on ws://%s", ln.Addr())

		errCh := make(chan error, 1)
		go func() { errCh <- httpSrv.Serve(ln) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", ":7085", "listen address")
	f.StringVarP(&serveUsername, "username", "u", "admin", "accepted username")
	f.StringVarP(&servePassword, "password", "p", "admin", "accepted password")
}
