package main

import "github.com/ValentinKolb/netcom/cmd"

func main() {
	cmd.Execute()
}
