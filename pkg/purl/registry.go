// Package purl identifies plugin-extracted import references using
// package URLs (https://github.com/package-url/purl-spec), the same
// identity scheme the teacher corpus uses for vulnerability package
// identity, generalized here to reference identity: an import string a
// plugin extracted (e.g. a Go module path, a Python package name) is
// rendered as a packageurl.PackageURL so two references naming "the same"
// external package compare equal regardless of which language's plugin
// produced them.
package purl

import (
	"context"
	"fmt"
	"sync"

	"github.com/package-url/packageurl-go"
)

// NoneNamespace is used for purl types that don't have a meaningful
// namespace component (most import-reference purl types don't).
var NoneNamespace = "none"

// ErrUnPurlable is returned when no generator is registered for a
// language tag.
type ErrUnPurlable struct{ Language string }

// Error implements error.
func (e ErrUnPurlable) Error() string {
	return fmt.Sprintf("purl: no generator registered for language %q", e.Language)
}

// NewErrUnPurlable builds an ErrUnPurlable for language.
func NewErrUnPurlable(language string) ErrUnPurlable {
	return ErrUnPurlable{Language: language}
}

// ErrUnknownPurl is returned when no parser is registered for a purl's
// (type, namespace) pair.
type ErrUnknownPurl struct {
	Type      string
	Namespace string
}

// Error implements error.
func (e ErrUnknownPurl) Error() string {
	return fmt.Sprintf("purl: no parser registered for type %q namespace %q", e.Type, e.Namespace)
}

// NewErrUnknownPurl builds an ErrUnknownPurl from purl's type/namespace.
func NewErrUnknownPurl(purl packageurl.PackageURL) ErrUnknownPurl {
	return ErrUnknownPurl{Type: purl.Type, Namespace: purl.Namespace}
}

// GenerateFunc turns an import string a plugin extracted (e.g. the
// argument of a Go "import" declaration) into a PackageURL.
type GenerateFunc func(ctx context.Context, importPath string) (packageurl.PackageURL, error)

// ParseFunc turns a PackageURL back into the import string(s) it denotes.
type ParseFunc func(ctx context.Context, purl packageurl.PackageURL) ([]string, error)

// TransformerFunc rewrites a PackageURL in place before Parse hands it to
// a registered ParseFunc, e.g. to default a namespace.
type TransformerFunc func(ctx context.Context, purl *packageurl.PackageURL) error

// Registry is a thread-safe registry of purl generators and parsers,
// keyed by language tag (for generation) and by purl (type, namespace)
// (for parsing). One Registry is shared process-wide; language plugins
// register into it during construction.
type Registry struct {
	mu                sync.RWMutex
	genByLanguage     map[string]GenerateFunc
	parseByPurlKey    map[string]ParseFunc
	transformByPurlKey map[string][]TransformerFunc
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		genByLanguage:      make(map[string]GenerateFunc),
		parseByPurlKey:     make(map[string]ParseFunc),
		transformByPurlKey: make(map[string][]TransformerFunc),
	}
}

// Default is the process-wide Registry language plugins register into
// during package initialization. The indexer does not consult it:
// extracted imports are stored as plain references, not rendered as
// package identities.
var Default = NewRegistry()

// RegisterLanguage registers fn as the purl generator for language.
func (r *Registry) RegisterLanguage(language string, fn GenerateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genByLanguage[language] = fn
}

// RegisterPurlType registers fn as the parser for purls of the given type
// and namespace; transforms run, in registration order, before fn.
func (r *Registry) RegisterPurlType(purlType, namespace string, fn ParseFunc, transforms ...TransformerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := purlKey(purlType, namespace)
	r.parseByPurlKey[key] = fn
	r.transformByPurlKey[key] = transforms
}

// Generate renders importPath as a PackageURL using the generator
// registered for language.
func (r *Registry) Generate(ctx context.Context, language, importPath string) (packageurl.PackageURL, error) {
	r.mu.RLock()
	fn, ok := r.genByLanguage[language]
	r.mu.RUnlock()
	if !ok {
		return packageurl.PackageURL{}, NewErrUnPurlable(language)
	}
	return fn(ctx, importPath)
}

// Parse recovers the import string(s) denoted by purl.
func (r *Registry) Parse(ctx context.Context, purl packageurl.PackageURL) ([]string, error) {
	if purl.Namespace == "" {
		purl.Namespace = NoneNamespace
	}
	key := purlKey(purl.Type, purl.Namespace)

	r.mu.RLock()
	transforms := r.transformByPurlKey[key]
	r.mu.RUnlock()
	for _, tf := range transforms {
		if err := tf(ctx, &purl); err != nil {
			return nil, fmt.Errorf("purl: transform: %w", err)
		}
	}

	r.mu.RLock()
	fn, ok := r.parseByPurlKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, NewErrUnknownPurl(purl)
	}
	return fn(ctx, purl)
}

func purlKey(purlType, namespace string) string {
	return purlType + "/" + namespace
}
