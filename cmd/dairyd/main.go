package main

import (
	"fmt"
	"os"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dairyd:", err)
		os.Exit(1)
	}
}
