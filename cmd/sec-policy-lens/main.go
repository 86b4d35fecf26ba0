package main

import (
	"github.com/spf13/cobra"

	"github.com/rupeshbug/sec-policy-lens/cmd/sec-policy-lens/cmds"
)

func main() {
	cobra.CheckErr(cmds.Execute())
}
