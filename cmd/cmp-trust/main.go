package main

import "github.com/information-sharing-networks/cmp-trust/internal/cli"

func main() {
	cli.Execute()
}
