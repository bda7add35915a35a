package main

import (
	cmd "github.com/vtuber/controlplane/cmd/controlplane"
)

func main() {
	cmd.Execute()
}
