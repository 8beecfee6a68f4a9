package main

import "github.com/castkit/castkit/internal/cli"

func main() {
	cli.Execute()
}
