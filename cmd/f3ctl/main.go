// Command f3ctl is the operator CLI: schema migrations, database checks and
// the one-time legacy import. The web server lives in cmd/server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
