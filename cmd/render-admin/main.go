package main

import (
	"os"

	"github.com/cuongbtq/render-queue/cmd/render-admin/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
