// Command satinalma runs the purchasing ledger API and its offline tools.
package main

func main() {
	Execute()
}
