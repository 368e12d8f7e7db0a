package main

import (
	"os"

	"github.com/msto63/personachat/cmd/personachat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
