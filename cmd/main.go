package main

import (
	"os"

	"github.com/soundprediction/medinsight/cmd/medinsight"
)

func main() {
	if err := medinsight.Execute(); err != nil {
		os.Exit(1)
	}
}
