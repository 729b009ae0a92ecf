// Command xmlshred imports arbitrary XML documents into SQLite.
package main

import "github.com/mesh-intelligence/xmlshred/internal/cli"

func main() {
	cli.Execute()
}
