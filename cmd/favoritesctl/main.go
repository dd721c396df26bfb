package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, openBackendStore).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
