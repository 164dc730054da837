// Package main is the entry point for the ontoforge server binary.
package main

import (
	"log"

	"ontoforge.dev/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
