// filepath: cmd/vtscp/main.go
package main

import (
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/cli"
)

func main() {
	// Delegate all execution to the CLI package
	cli.Execute()
}
