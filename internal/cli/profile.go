package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/tdb-client/internal/config"
	"github.com/LLIEPJIOK/tdb-client/internal/logging"
	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

var (
	profileURL        string
	profileDB         string
	profileSchema     string
	profileSchemaFile string
	profileUsername   string
	profilePassword   string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved connection profiles",
}

// profileAddCmd saves a profile to the config file and its password to the
// OS keychain.
var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		p := config.Profile{
			URL:        profileURL,
			DBName:     profileDB,
			Schema:     profileSchema,
			SchemaFile: profileSchemaFile,
			Username:   profileUsername,
		}

		if _, err := ws.ParseEndpoint(p.URL); err != nil {
			return err
		}

		if _, err := p.SchemaText(); err != nil {
			return err
		}

		password := profilePassword
		if !cmd.Flags().Changed("password") {
			pw, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password for " + name)
			if err != nil {
				return err
			}
			password = pw
		}

		km, err := openKeychain()
		if err != nil {
			return err
		}

		if err := km.SavePassword(name, password); err != nil {
			return fmt.Errorf("save password: %w", err)
		}

		cfg.SetProfile(name, p)

		if err := config.Save(configPath, cfg); err != nil {
			return err
		}

		pterm.Success.Printfln("Profile %q saved", name)

		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := cfg.ProfileNames()
		if len(names) == 0 {
			pterm.Info.Println("No profiles saved. Add one with: tdbctl profile add <name>")
			return nil
		}

		data := pterm.TableData{{"NAME", "URL", "DATABASE", "USERNAME", "SCHEMA"}}
		for _, name := range names {
			p := cfg.Profiles[name]

			schema := "inline"
			switch {
			case p.SchemaFile != "" && p.Schema == "":
				schema = p.SchemaFile
			case p.Schema == "":
				schema = "-"
			}

			data = append(data, []string{name, logging.Mask(p.URL), p.DBName, p.Username, schema})
		}

		return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a saved profile and its password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if err := cfg.RemoveProfile(name); err != nil {
			return err
		}

		if err := config.Save(configPath, cfg); err != nil {
			return err
		}

		km, err := openKeychain()
		if err != nil {
			logger.Warn("keychain unavailable, password not removed", "profile", name, "error", err)
		} else if err := km.DeletePassword(name); err != nil {
			logger.Warn("failed to remove password", "profile", name, "error", err)
		}

		pterm.Success.Printfln("Profile %q removed", name)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileAddCmd, profileListCmd, profileRemoveCmd)

	f := profileAddCmd.Flags()
	f.StringVar(&profileURL, "url", config.DefaultURL, "server URL (ws:// or wss://)")
	f.StringVar(&profileDB, "db", "", "database name")
	f.StringVar(&profileSchema, "schema", "", "schema text")
	f.StringVar(&profileSchemaFile, "schema-file", "", "file with the schema text (.tdb)")
	f.StringVarP(&profileUsername, "username", "u", "", "username")
	f.StringVarP(&profilePassword, "password", "p", "", "password (prompted when omitted)")
	profileAddCmd.MarkFlagsMutuallyExclusive("schema", "schema-file")
}
