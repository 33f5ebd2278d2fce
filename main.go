package main

import "github.com/banyuechenjiang/cardsort/cmd"

func main() {
	cmd.Execute()
}
