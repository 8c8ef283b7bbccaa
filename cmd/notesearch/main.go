// Package main 是 notesearch 命令行工具的入口。
package main

import (
	"os"

	"note-search-go/cmd/notesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
