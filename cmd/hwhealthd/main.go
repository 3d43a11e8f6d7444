package main

import (
	"github.com/hwstack/hwhealth-exporter/pkg/cli"
)

func main() {
	cli.Execute()
}
