package main

import (
	"log"

	"github.com/zerotrust-lab/pep-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
