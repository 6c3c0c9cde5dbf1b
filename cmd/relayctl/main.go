package main

import (
	"os"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/cmd/relayctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
