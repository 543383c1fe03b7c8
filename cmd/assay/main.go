// Command assay is the deployment-verification runtime's CLI: it dispatches
// a YAML check file into the check runner or a script file into the VM.
package main

import "os"

func main() {
	os.Exit(Execute())
}
