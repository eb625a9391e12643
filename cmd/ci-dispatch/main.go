package main

import "github.com/davarch/ci-dispatch/cmd/ci-dispatch/cli"

func main() {
	cli.Execute()
}
