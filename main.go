package main

import "github.com/CosmoTheDev/pct/cmd"

func main() {
	cmd.Execute()
}
