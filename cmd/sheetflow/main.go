package main

import (
	"os"

	"github.com/JonMunkholm/sheetflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
