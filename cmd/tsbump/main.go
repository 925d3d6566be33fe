package main

import (
	"fmt"
	"os"

	"github.com/gnolang/tsbump/cmd"
	"github.com/gnolang/tsbump/formatter"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, formatter.FormatError(err))
		os.Exit(1)
	}
}
