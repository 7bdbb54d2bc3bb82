package main

import "github.com/felixgeelhaar/apollo/cmd/apollo/cli"

func main() {
	cli.Execute()
}
