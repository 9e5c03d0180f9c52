package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRepoRelative(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(sub, "c.go")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	rel, err := RepoRelative(root, file)
	if err != nil {
		t.Fatal(err)
	}
	if want := "a/b/c.go"; rel != want {
		t.Errorf("got %q, want %q", rel, want)
	}

	if _, err := RepoRelative(root, filepath.Join(root, "..", "outside.go")); !errors.Is(err, ErrPathOutsideRepo) {
		t.Errorf("expected ErrPathOutsideRepo, got %v", err)
	}
}

func TestRepoRelativeRoot(t *testing.T) {
	root := t.TempDir()
	rel, err := RepoRelative(root, root)
	if err != nil {
		t.Fatal(err)
	}
	if rel != "" {
		t.Errorf("got %q, want empty string for the root itself", rel)
	}
}

type translateTestcase struct {
	Name   string
	Pairs  []PrefixPair
	Path   string
	Target Target
	Want   string
}

func (tc translateTestcase) Run(t *testing.T) {
	r := NewResolver(tc.Pairs)
	got := r.Translate(tc.Path, tc.Target)
	if got != tc.Want {
		t.Errorf("got %q, want %q", got, tc.Want)
	}
}

func TestTranslate(t *testing.T) {
	pairs := []PrefixPair{
		{Mount: "/workspace", WorkingTree: "/home/user/proj"},
		{Mount: "/workspace/vendor", WorkingTree: "/home/user/proj/third_party"},
	}
	tt := []translateTestcase{
		{
			Name:   "MountToTree",
			Pairs:  pairs,
			Path:   "/workspace/main.go",
			Target: WorkingTree,
			Want:   "/home/user/proj/main.go",
		},
		{
			Name:   "TreeToMount",
			Pairs:  pairs,
			Path:   "/home/user/proj/main.go",
			Target: IndexInternal,
			Want:   "/workspace/main.go",
		},
		{
			Name:   "PrefersLongestMount",
			Pairs:  pairs,
			Path:   "/workspace/vendor/lib.go",
			Target: WorkingTree,
			Want:   "/home/user/proj/third_party/lib.go",
		},
		{
			Name:   "Idempotent",
			Pairs:  pairs,
			Path:   "/home/user/proj/main.go",
			Target: WorkingTree,
			Want:   "/home/user/proj/main.go",
		},
		{
			Name:   "NoMatchingPrefix",
			Pairs:  pairs,
			Path:   "/etc/hosts",
			Target: WorkingTree,
			Want:   "/etc/hosts",
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, tc.Run)
	}
}

func TestIsWithin(t *testing.T) {
	if !IsWithin("/a/b", "/a/b") {
		t.Error("root should be within itself")
	}
	if !IsWithin("/a/b", "/a/b/c") {
		t.Error("child should be within root")
	}
	if IsWithin("/a/b", "/a/bc") {
		t.Error("sibling with shared prefix should not be within root")
	}
}
