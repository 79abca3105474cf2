package stream

import "terrastream/internal/mesh"

type templateKey struct {
	size int
	res  int
}

// TemplateCache is the flyweight store of shared base geometry+material,
// keyed by tile dimensions. Templates are built once and never mutated;
// realized tiles clone them.
type TemplateCache struct {
	templates map[templateKey]*mesh.Template
}

func NewTemplateCache() *TemplateCache {
	return &TemplateCache{templates: map[templateKey]*mesh.Template{}}
}

func (tc *TemplateCache) GetOrCreate(tileSize, resolution int) *mesh.Template {
	k := templateKey{size: tileSize, res: resolution}
	if t, ok := tc.templates[k]; ok {
		return t
	}
	t := mesh.NewTemplate(tileSize, resolution)
	tc.templates[k] = t
	return t
}

func (tc *TemplateCache) Len() int {
	return len(tc.templates)
}

// Clear disposes every cached template. Only full-system teardown calls this.
func (tc *TemplateCache) Clear() {
	for k, t := range tc.templates {
		t.Dispose()
		delete(tc.templates, k)
	}
}
