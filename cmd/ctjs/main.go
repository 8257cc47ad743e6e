// Command ctjs loads ChatTriggers script imports and drives their lifecycle
package main

import (
	"fmt"
	"os"

	"github.com/chattriggers/ctjs/pkg/cli"
)

var version = "dev"

func main() {
	if err := cli.ExecuteWithVersion(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
