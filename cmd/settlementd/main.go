// Command settlementd is the settlement-core daemon entrypoint. Flag
// parsing, config loading, and run-mode dispatch all live in
// internal/cli — main just hands off to it, the way LeJamon-goXRPLd's
// cmd/goxrpld/main.go defers everything to its cli package.
package main

import "github.com/oxzoid/settlementcore/internal/cli"

func main() {
	cli.Execute()
}
