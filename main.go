package main

import "wabiz/cmd"

func main() {
	cmd.Execute()
}
