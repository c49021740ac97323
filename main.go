package main

import "github.com/BhargavCodes/ai-vault/internal/cli"

func main() {
	cli.Execute()
}
