package main

import "relay.dev/relay/cmd/relay/cmd"

func main() {
	cmd.Execute()
}
