package main

import "github.com/jmehdipour/intent-gateway/cmd"

func main() {
	cmd.Execute()
}
