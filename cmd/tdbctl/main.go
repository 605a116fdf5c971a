// Command tdbctl is the command-line client for TDB servers.
package main

import "github.com/LLIEPJIOK/tdb-client/internal/cli"

func main() {
	cli.Execute()
}
