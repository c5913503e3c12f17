// Command plancast schedules project files and forecasts their completion.
package main

import (
	"os"

	"github.com/Iron-Ham/plancast/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
