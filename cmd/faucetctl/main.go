package main

import (
	"fmt"
	"os"

	"bchfaucet/cmd/faucetctl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
