package main

import (
	"fmt"
	"os"

	"github.com/arthur-debert/plugdeploy/cmd/plugdeploy"
	"github.com/arthur-debert/plugdeploy/pkg/ui/styles"
)

func main() {
	rootCmd := plugdeploy.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Results and failures rendered by the command only set the exit code
		if !plugdeploy.Reported(err) {
			errorStyle := styles.GetStyle("Error")
			fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		}
		os.Exit(1)
	}
}
