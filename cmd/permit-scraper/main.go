package main

import "github.com/pfrederiksen/permit-scraper/internal/cli"

func main() {
	cli.Execute()
}
