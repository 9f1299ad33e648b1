// Package main is the freeman command itself.
package main

import (
	"log"
	"os"

	"go.viam.com/freeman/cli"
)

func main() {
	if err := cli.NewApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
