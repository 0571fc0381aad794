package main

import (
	"github.com/mchmarny/walletscore/pkg/cli"
)

func main() {
	cli.Execute()
}
