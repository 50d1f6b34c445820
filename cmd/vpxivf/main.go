package main

import (
	"github.com/mengelbart/vpxivf/cmdmain"
	_ "github.com/mengelbart/vpxivf/subcmd"
)

func main() {
	cmdmain.Main()
}
