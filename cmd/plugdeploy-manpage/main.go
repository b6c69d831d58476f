package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/plugdeploy/cmd/plugdeploy"
	"github.com/arthur-debert/plugdeploy/internal/version"
)

func main() {
	rootCmd := plugdeploy.NewRootCmd()

	header := &doc.GenManHeader{
		Title:   "PLUGDEPLOY",
		Section: "1",
		Source:  "plugdeploy " + version.Version,
		Manual:  "plugdeploy manual",
	}

	// With a directory argument every subcommand gets its own page
	if len(os.Args) > 1 {
		if err := doc.GenManTree(rootCmd, header, os.Args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating man pages: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := doc.GenMan(rootCmd, header, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
