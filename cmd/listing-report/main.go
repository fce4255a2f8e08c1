// Command listing-report scrapes product listings and delivers them as an
// xlsx report.
package main

func main() {
	Execute()
}
