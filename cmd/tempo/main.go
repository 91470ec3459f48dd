package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "tempo",
		Short: "Tempo inbound message gateway",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the inbound gateway server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
