package main

// version is overridden at release time via
// -ldflags "-X main.version=...".
var version = "dev"

func main() {
	Execute()
}
