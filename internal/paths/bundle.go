package paths

import "sort"

// Kind classifies a detected resource.
type Kind string

const (
	KindModule Kind = "module"
	KindDriver Kind = "driver"
	KindSecret Kind = "secret"
)

var kindOrder = map[Kind]int{KindModule: 0, KindDriver: 1, KindSecret: 2}

// Resource is one verified host resource.
type Resource struct {
	Kind     Kind
	Name     string
	HostPath string
	// Files lists the detected file names for directory bundles.
	Files []string
}

// ResourceBundle is the set of resources detected for one render.
type ResourceBundle struct {
	Resources []Resource
}

// ByKind returns the resources of kind k in bundle order.
func (b ResourceBundle) ByKind(k Kind) []Resource {
	var out []Resource
	for _, r := range b.Resources {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// Secret returns the secret resource named name.
func (b ResourceBundle) Secret(name string) (Resource, bool) {
	for _, r := range b.Resources {
		if r.Kind == KindSecret && r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

func (b *ResourceBundle) add(r Resource) {
	b.Resources = append(b.Resources, r)
}

func (b *ResourceBundle) remove(k Kind, name string) {
	kept := b.Resources[:0]
	for _, r := range b.Resources {
		if r.Kind == k && r.Name == name {
			continue
		}
		kept = append(kept, r)
	}
	b.Resources = kept
}

func (b *ResourceBundle) sort() {
	sort.SliceStable(b.Resources, func(i, j int) bool {
		a, c := b.Resources[i], b.Resources[j]
		if a.Kind != c.Kind {
			return kindOrder[a.Kind] < kindOrder[c.Kind]
		}
		return a.Name < c.Name
	})
}
