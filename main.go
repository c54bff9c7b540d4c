// ./main.go
package main

import (
	"github.com/voxctl/voxctl/cmd"
)

// main is the entry point for the voxctl agent.
func main() {
	cmd.Execute()
}
