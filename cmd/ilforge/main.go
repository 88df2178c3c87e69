// Command ilforge drives one end-to-end compile: decoded managed metadata
// in, standalone C++ translation units out (spec.md §1/§4.6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ilforge",
		Short: "ahead-of-time compiler from decoded managed metadata to C++",
	}
	root.AddCommand(newBuildCmd())
	return root
}
