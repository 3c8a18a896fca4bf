// flags.go holds the flag scanning shared by build, run and test.
package main

import "fmt"

// scanFlag returns the flag at args[i] followed by its value when
// takesValue reports that the flag expects one as a separate argument, and
// the index of the last argument consumed.
//
//	-tags dev   -> [-tags dev], i+1
//	-tags=dev   -> [-tags=dev], i
//	-trimpath   -> [-trimpath], i
func scanFlag(args []string, i int, takesValue func(string) bool) ([]string, int, error) {
	flag := args[i]
	if !takesValue(flag) {
		return []string{flag}, i, nil
	}
	if i+1 >= len(args) {
		return nil, i, fmt.Errorf("%s flag requires an argument", flag)
	}
	return []string{flag, args[i+1]}, i + 1, nil
}
