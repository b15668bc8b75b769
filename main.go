package main

import (
	"github.com/axellelanca/portfolio-payments/cmd"
	_ "github.com/axellelanca/portfolio-payments/cmd/cli"
	_ "github.com/axellelanca/portfolio-payments/cmd/server"
)

func main() {
	cmd.Execute()
}
