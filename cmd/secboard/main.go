// Command secboard serves the security dashboard API and runs scans from the
// command line.
package main

import "github.com/raysh454/secboard/internal/cli"

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Execute(cli.BuildInfo{Version: version, Commit: commit, BuildDate: buildDate})
}
