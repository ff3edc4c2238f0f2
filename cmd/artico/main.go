package main

import (
	"os"

	"artico/cmd/artico/cmds"
)

func main() {
	if err := cmds.Execute(); err != nil {
		os.Exit(1)
	}
}
