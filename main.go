// The main package for the academic-crawler executable.
package main

import (
	"github.com/JakeFAU/academic-crawler/cmd"
)

func main() {
	cmd.Execute()
}
