// Command scriptorium publishes documents and notes to Nostr relays.
package main

import "github.com/papapumpkin/scriptorium/cmd"

func main() {
	cmd.Execute()
}
