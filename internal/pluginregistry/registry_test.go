package registry

import (
	"context"
	"fmt"
	"testing"
)

type MyPlugin interface {
	Example()
}

func Example() {
	desc := Description[MyPlugin]{
		New: func(_ context.Context, _ func(_ any) error) (MyPlugin, error) {
			return nil, nil
		},
		Default: true,
	}
	if err := Register[MyPlugin]("example", &desc); err != nil {
		fmt.Println("error:", err)
	} else {
		fmt.Println("OK")
	}
	for _, n := range Names[MyPlugin]() {
		fmt.Println("name:", n)
	}
	for _, n := range Defaults[MyPlugin]() {
		fmt.Println("default:", n)
	}
	// Output:
	// OK
	// name: example
	// default: example
}

// dupPlugin is a type of its own so that the names this test registers do
// not show up in Example's output.
type dupPlugin interface {
	Dup()
}

func TestRegisterDuplicate(t *testing.T) {
	desc := &Description[dupPlugin]{
		New: func(_ context.Context, _ func(_ any) error) (dupPlugin, error) { return nil, nil },
	}
	if err := Register[dupPlugin]("dup", desc); err != nil {
		t.Fatal(err)
	}
	if err := Register[dupPlugin]("dup", desc); err == nil {
		t.Error("expected error registering duplicate name")
	}
}
