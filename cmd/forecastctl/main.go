// Command forecastctl runs forecast jobs against the pipeline from a terminal.
package main

import (
	"os"

	"github.com/tanaka-takurou/serverless-forecast-page-go/cmd/forecastctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
