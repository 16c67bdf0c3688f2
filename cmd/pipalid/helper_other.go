//go:build !linux

package main

import (
	"fmt"
	"runtime"
)

func runHelper([]string) error {
	return fmt.Errorf("the %s helper is not used on %s", helperCommand, runtime.GOOS)
}
