package main

import (
	"os"

	"github.com/ccp-p/shadow-caption/cmd/shadowcap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
