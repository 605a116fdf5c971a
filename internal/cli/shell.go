package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/tdb-client/internal/logging"
	"github.com/LLIEPJIOK/tdb-client/pkg/tdb"
	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

const shellHelp = `commands:
  connect <profile> [id]                open a connection using a saved profile
  query <id> <action> <table> [json]    send a request over connection id
  disconnect <id>                       close connection id
  list                                  list open connections
  help                                  show this help
  exit                                  close all connections and quit`

var shellMetricsAddr string

// shellCmd runs an interactive session holding several named connections.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with multiple named connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var metrics *tdb.Metrics
		if shellMetricsAddr != "" {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			metrics = tdb.NewMetrics(reg)

			stop, err := serveMetrics(shellMetricsAddr, reg)
			if err != nil {
				return err
			}
			defer stop()
		}

		client, err := newClient(metrics)
		if err != nil {
			return err
		}

		sh := &shell{
			client:   client,
			resolver: newProfileResolver(&cfg),
			out:      cmd.OutOrStdout(),
			newID:    uuid.NewString,
		}

		fmt.Fprintln(sh.out, "tdbctl shell; type 'help' for commands")

		runErr := sh.run(ctx, cmd.InOrStdin())

		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return errors.Join(runErr, client.Close(closeCtx))
	},
}

func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

type resolver interface {
	Resolve(name string) (ws.ConnectionParameters, error)
}

type shell struct {
	client   *tdb.Client
	resolver resolver
	out      io.Writer
	newID    func() string
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)

	s.prompt()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		if quit := s.execute(ctx, strings.TrimSpace(scanner.Text())); quit {
			return nil
		}

		s.prompt()
	}

	return scanner.Err()
}

func (s *shell) prompt() {
	if f, ok := s.out.(*os.File); ok && f == os.Stdout {
		fmt.Fprint(s.out, "tdb> ")
	}
}

// execute runs one line and reports whether the session should end.
func (s *shell) execute(ctx context.Context, line string) bool {
	name, rest := nextField(line)

	var err error

	switch name {
	case "":
		return false
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "list":
		s.list()
	case "connect":
		err = s.connect(ctx, rest)
	case "query":
		err = s.query(ctx, rest)
	case "disconnect":
		err = s.disconnect(rest)
	default:
		err = fmt.Errorf("unknown command %q, type 'help'", name)
	}

	if err != nil {
		pterm.Error.WithWriter(s.out).Println(logging.PresentError(name, err))
	}

	return false
}

func (s *shell) connect(ctx context.Context, args string) error {
	profile, rest := nextField(args)
	id, _ := nextField(rest)

	if profile == "" {
		return errors.New("usage: connect <profile> [id]")
	}

	if id == "" {
		id = s.newID()
	}

	params, err := s.resolver.Resolve(profile)
	if err != nil {
		return err
	}

	if err := s.client.Connect(ctx, id, params); err != nil {
		return err
	}

	pterm.Success.WithWriter(s.out).Printfln("connected %s", id)

	return nil
}

func (s *shell) query(ctx context.Context, args string) error {
	id, rest := nextField(args)
	action, rest := nextField(rest)
	table, rest := nextField(rest)

	if id == "" || action == "" {
		return errors.New("usage: query <id> <action> <table> [json]")
	}

	req, err := parseRequest(action, table, strings.TrimSpace(rest))
	if err != nil {
		return err
	}

	resp, err := s.client.Query(ctx, id, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, resp.Indent())

	if srvErr := resp.ServerError(); srvErr != nil {
		pterm.Warning.WithWriter(s.out).Printfln("server error: %v", srvErr)
	}

	return nil
}

func (s *shell) disconnect(args string) error {
	id, _ := nextField(args)
	if id == "" {
		return errors.New("usage: disconnect <id>")
	}

	if err := s.client.Disconnect(id); err != nil {
		return err
	}

	pterm.Success.WithWriter(s.out).Printfln("disconnected %s", id)

	return nil
}

func (s *shell) list() {
	ids := s.client.Connections()
	if len(ids) == 0 {
		fmt.Fprintln(s.out, "no open connections")
		return
	}

	for _, id := range ids {
		fmt.Fprintln(s.out, id)
	}
}

// nextField splits off the first whitespace-separated word of s.
func nextField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")

	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}

	return s[:i], s[i+1:]
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringVar(&shellMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}
