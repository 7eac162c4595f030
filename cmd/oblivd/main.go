package main

import (
	"fmt"
	"os"

	"github.com/oblivion-chain/oblivion/app"
	"github.com/oblivion-chain/oblivion/cmd/oblivd/cmd"
)

func main() {
	app.SetAddressPrefixes()

	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
