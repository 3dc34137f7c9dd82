package main

import (
	"fmt"
	"os"

	"github.com/xraph/rostersync/cmd/rostersyncd/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
