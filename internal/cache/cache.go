// Package cache holds process-wide in-memory lookups backed by go-cache.
package cache

import (
	"sort"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// Store is a concurrency-safe name to application index.
type Store interface {
	Get(name string) (*models.Application, bool)
	Set(app *models.Application)
	Delete(name string)
	Len() int
	List() []*models.Application
}

// Applications maps application names to their decoded descriptors.
// Entries never expire; the registry decides when to repopulate.
type Applications struct {
	c *gocache.Cache
}

// NewApplications creates an empty application cache.
func NewApplications() *Applications {
	return &Applications{c: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns the application cached under name.
func (a *Applications) Get(name string) (*models.Application, bool) {
	v, ok := a.c.Get(name)
	if !ok {
		return nil, false
	}
	app, ok := v.(*models.Application)
	return app, ok
}

// Set stores app under its name, replacing any previous entry.
func (a *Applications) Set(app *models.Application) {
	a.c.Set(app.Name, app, gocache.NoExpiration)
}

// Delete drops the entry for name.
func (a *Applications) Delete(name string) {
	a.c.Delete(name)
}

// Len returns the number of cached applications.
func (a *Applications) Len() int {
	return a.c.ItemCount()
}

// List returns all cached applications ordered by name.
func (a *Applications) List() []*models.Application {
	items := a.c.Items()
	apps := make([]*models.Application, 0, len(items))
	for _, item := range items {
		if app, ok := item.Object.(*models.Application); ok {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps
}

var _ Store = (*Applications)(nil)
