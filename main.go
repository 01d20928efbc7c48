package main

import "github.com/vimalinx/vimagram/cmd"

func main() {
	cmd.Execute()
}
