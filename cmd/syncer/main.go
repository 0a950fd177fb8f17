package main

import "notion_sync/cmd/syncer/cmd"

func main() {
	cmd.Execute()
}
