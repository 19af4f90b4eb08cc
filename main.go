package main

import "github.com/jonwraymond/dbops/cmd"

func main() {
	cmd.Execute()
}
