package main

import (
	"os"

	"artifactvault/cmd/av/commands"
)

func main() {
	// cobra 已经打印了错误
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
