// gmicfx runs image filters headlessly from a synchronized filter catalog.
package main

import (
	"os"

	"github.com/hupe1980/gmicfx/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
