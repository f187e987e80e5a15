package benchaux

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/soypat/querytime"
	"github.com/soypat/querytime/meshdist"
	"github.com/soypat/querytime/sdffield"
)

// Mesh backend names.
const (
	BackendBVH        = "bvh"
	BackendModel3D    = "model3d"
	BackendBruteForce = "bruteforce"
)

// ErrUnknownBackend is returned for backend names not in [BackendNames].
var ErrUnknownBackend = errors.New("unknown backend")

var backendBuilders = map[string]func(*meshdist.Mesh) (querytime.Backend, error){
	BackendBVH:        func(m *meshdist.Mesh) (querytime.Backend, error) { return meshdist.NewBVH(m) },
	BackendModel3D:    func(m *meshdist.Mesh) (querytime.Backend, error) { return meshdist.NewModel3D(m) },
	BackendBruteForce: func(m *meshdist.Mesh) (querytime.Backend, error) { return meshdist.NewBruteForce(m) },
}

// BackendNames returns the names accepted by [NewBackend].
func BackendNames() []string {
	return []string{BackendBVH, BackendModel3D, BackendBruteForce}
}

func isBackend(name string) bool {
	_, ok := backendBuilders[name]
	return ok
}

// NewBackend builds the named mesh backend over m.
func NewBackend(name string, m *meshdist.Mesh) (querytime.Backend, error) {
	build, ok := backendBuilders[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, want one of %s", ErrUnknownBackend, name, strings.Join(BackendNames(), ", "))
	}
	return build(m)
}

// Reference is a backend declaring the domain it was built for.
type Reference interface {
	querytime.Backend
	querytime.SampleAreaer
}

// LoadReference loads the exact field file at path. Paths starting with [SDFXPrefix] or
// [AnalyticPrefix] select a demo shape by name instead, see [ShapeNames] and
// [AnalyticShapeNames]. Analytic shapes accept an offset as in "analytic:sphere@0.5,0,0".
func LoadReference(path string) (Reference, error) {
	if strings.HasPrefix(path, SDFXPrefix) || strings.HasPrefix(path, AnalyticPrefix) {
		return loadShape(path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".qtof", ".bin":
		return sdffield.ReadFile(path)
	default:
		return nil, fmt.Errorf("unsupported reference field format %q", ext)
	}
}
