package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/tdb-client/internal/config"
	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

var (
	queryAction     string
	queryTable      string
	queryData       string
	queryDB         string
	querySchema     string
	querySchemaFile string
	queryUsername   string
	queryPassword   string
)

// queryCmd connects, sends one request and prints the response.
var queryCmd = &cobra.Command{
	Use:   "query <profile|url>",
	Short: "Send a single request and print the response",
	Long: `The query command opens a connection, sends one request envelope and prints
the server's response as indented JSON. The target is either a saved profile
or a ws:// / wss:// URL combined with the connection flags.

Example: tdbctl query local --action select --table users --data '{"id":1}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parseRequest(queryAction, queryTable, queryData)
		if err != nil {
			return err
		}

		params, err := queryParams(args[0])
		if err != nil {
			return err
		}

		client, err := newClient(nil)
		if err != nil {
			return err
		}
		defer client.Close(context.Background())

		ctx := cmd.Context()
		id := uuid.NewString()

		if err := client.Connect(ctx, id, params); err != nil {
			return err
		}

		resp, err := client.Query(ctx, id, req)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), resp.Indent())

		if srvErr := resp.ServerError(); srvErr != nil {
			return fmt.Errorf("server: %w", srvErr)
		}

		return nil
	},
}

func queryParams(target string) (ws.ConnectionParameters, error) {
	if !strings.Contains(target, "://") {
		return newProfileResolver(&cfg).Resolve(target)
	}

	p := config.Profile{
		URL:        target,
		DBName:     queryDB,
		Schema:     querySchema,
		SchemaFile: querySchemaFile,
		Username:   queryUsername,
	}

	return p.Parameters(queryPassword)
}

func init() {
	rootCmd.AddCommand(queryCmd)

	f := queryCmd.Flags()
	f.StringVarP(&queryAction, "action", "a", "", "request action: insert, select, update, delete")
	f.StringVarP(&queryTable, "table", "t", "", "target table")
	f.StringVarP(&queryData, "data", "d", "", "request data as a JSON object")
	f.StringVar(&queryDB, "db", "", "database name (URL targets only)")
	f.StringVar(&querySchema, "schema", "", "schema text (URL targets only)")
	f.StringVar(&querySchemaFile, "schema-file", "", "file with the schema text (URL targets only)")
	f.StringVarP(&queryUsername, "username", "u", "", "username (URL targets only)")
	f.StringVarP(&queryPassword, "password", "p", "", "password (URL targets only)")
	_ = queryCmd.MarkFlagRequired("action")
}
