//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
)

var env *Env

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	env, err = Setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "integration setup:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.Teardown(ctx)
	os.Exit(code)
}
