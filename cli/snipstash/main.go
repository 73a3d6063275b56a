package main

import (
	"os"

	snipstashcmder "github.com/snipstash/snipstash/cmd/snipstash"
)

func main() {
	cmd := snipstashcmder.NewSnipstashCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
