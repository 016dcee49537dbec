package main

import (
	"github.com/lumio-chat/inlinegw/cmd"
)

func main() {
	cmd.Execute()
}
