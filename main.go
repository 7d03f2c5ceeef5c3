// The main package for the pdfpull executable.
package main

import "github.com/pdfpull/pdfpull/cmd"

func main() {
	cmd.Execute()
}
