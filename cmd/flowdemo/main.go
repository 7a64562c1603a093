// Command flowdemo plays the flowkit demo screens in the terminal or serves
// them as server-sent event streams.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
