package main

import (
	"fmt"
	"os"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal"
)

func main() {
	if err := internal.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
