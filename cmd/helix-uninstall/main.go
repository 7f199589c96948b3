package main

import (
	"os"

	installer "github.com/helix-apps/helix-installer"
)

func main() {
	os.Exit(installer.RunUninstall(os.Args[1:]))
}
