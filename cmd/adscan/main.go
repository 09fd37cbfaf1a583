package main

import (
	"os"

	"github.com/qsarlab/adscan/internal/interfaces/cli"
)

func main() {
	os.Exit(cli.Execute())
}
