// The main package for the sitedown executable.
package main

import (
	"github.com/sitedown/sitedown/cmd"
)

func main() {
	cmd.Execute()
}
