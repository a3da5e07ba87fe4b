package main

import (
	"github.com/dmarinho/rollback-engine/internal/cli/commands"
)

func main() {
	commands.Execute()
}
