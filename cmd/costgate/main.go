// Package main is the entry point for CostGate.
package main

func main() {
	Execute()
}
