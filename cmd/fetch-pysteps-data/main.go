// Command fetch-pysteps-data installs the pysteps test dataset into a
// directory and writes a pystepsrc pointing at it.
package main

import "github.com/oshokin/pysteps-data-fetcher/cmd/fetch-pysteps-data/cmd"

func main() {
	cmd.Execute()
}
