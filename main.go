package main

import "github.com/TruWeaveTrader/treasury-pairs/cmd"

func main() {
	cmd.Execute()
}
