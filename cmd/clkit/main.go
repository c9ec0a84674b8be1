package main

import (
	"fmt"
	"github.com/notargets/clkit/cmd/clkit/commands"
	"os"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
