package cmd

import (
	"fmt"
)

const banner = `
  ______ _       ____       _     _
 |  ____(_)     |  _ \     (_)   | |
 | |__   _ _ __ | |_) |_ __ _  __| | __ _  ___
 |  __| | | '_ \|  _ <| '__| |/ _` + "`" + ` |/ _` + "`" + ` |/ _ \
 | |    | | | | | |_) | |  | | (_| | (_| |  __/
 |_|    |_|_| |_|____/|_|  |_|\__,_|\__, |\___|
                                     __/ |
                                    |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Bank Connector Service - Version %s\x1b[0m\n\n", Version)
}
