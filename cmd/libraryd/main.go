// Command libraryd runs the library lending service and its maintenance
// tools.
package main

import "github.com/warp/lending-engine/cmd/libraryd/command"

func main() {
	command.Execute()
}
