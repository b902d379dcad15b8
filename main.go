package main

import (
	"os"

	"github.com/maastricht-university/alignment-qc/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
