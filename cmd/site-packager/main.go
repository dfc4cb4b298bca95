package main

import "github.com/oshokin/site-packager/cmd/site-packager/cmd"

func main() {
	cmd.Execute()
}
