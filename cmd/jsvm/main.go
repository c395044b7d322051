package main

import "github.com/wendelmax/jsvm/pkg/cli"

func main() {
	cli.Main()
}
