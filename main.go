package main

import "tokyosniper/internal/cli"

func main() {
	cli.Execute()
}
