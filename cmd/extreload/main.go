// extreload rebuilds an unpacked browser extension on every edit and reloads
// it in a running browser over the remote debugging protocol.
package main

import (
	"os"

	"github.com/vibbit-dev/extreload/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
