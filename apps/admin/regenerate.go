package main

import (
	"context"
	"fmt"
)

// regenerateTuitions rebuilds the tuition templates from the current student
// profiles. Meeting links of surviving tuitions are preserved.
func (cli *commandLine) regenerateTuitions() error {
	tuts, err := cli.tutSvc.RegenerateAll(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("regenerated %d tuitions\n", len(tuts))
	return nil
}
