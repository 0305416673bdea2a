// Kartta - Multi-account AWS inventory aggregator
package main

func main() {
	Execute()
}
