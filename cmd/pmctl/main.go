// Command pmctl runs one-off maintenance tasks against the projecthub
// database: migrations, a manual deadline sweep and outbox replays.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
