// Command quotescrawler crawls the quotes site, loads the results into a
// relational store and serves them back.
package main

import "github.com/JakeFAU/quotes-crawler/cmd"

func main() {
	cmd.Execute()
}
