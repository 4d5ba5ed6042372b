package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gwsandbox/gwsandbox-ctl/internal/audit"
	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/generator"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/paths"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
)

// Create accepts def, renders its artifacts and registers a new environment
// in the created state. On any failure nothing is left behind: no record and
// no artifact directory.
func (o *Orchestrator) Create(ctx context.Context, def definition.Definition) (view View, err error) {
	began := o.now()
	defer func() { o.observe("create", began, err) }()

	if err := ctx.Err(); err != nil {
		return View{}, err
	}

	d := def.WithDefaults(o.cfg.Defaults)
	if err := d.Validate(); err != nil {
		return View{}, err
	}
	if err := generator.Validate(&d); err != nil {
		return View{}, err
	}

	// The snapshot of used ports stays valid until the record is in the
	// registry, for creates in this process and in any other process
	// sharing the state directory.
	unlockCreate, err := o.locks.lock(createLock)
	if err != nil {
		return View{}, err
	}
	defer unlockCreate()

	reservation, err := o.ports.Reserve(o.usedPorts(), d.Gateway.HTTPPort, d.Gateway.HTTPSPort)
	if err != nil {
		return View{}, err
	}
	defer reservation.Release()
	d.Gateway.HTTPPort = reservation.HTTP
	d.Gateway.HTTPSPort = reservation.HTTPS

	id := o.newID()
	unlock, ok := o.locks.tryLock(id)
	if !ok {
		return View{}, errors.Busy(id)
	}
	defer unlock()

	res, err := o.resolver.Resolve(&d)
	if err != nil {
		return View{}, err
	}

	rollback := func() {
		if rmErr := o.writer.Remove(id); rmErr != nil {
			logging.Warn("failed to roll back artifacts", "id", id, "error", rmErr)
		}
	}

	if d.Gateway.AdminPassword != "" {
		secretPath, err := o.writer.WriteSecret(id, paths.SecretAdminPassword, []byte(d.Gateway.AdminPassword))
		if err != nil {
			rollback()
			return View{}, err
		}
		if err := paths.AttachSecret(res, paths.SecretAdminPassword, secretPath); err != nil {
			rollback()
			return View{}, err
		}
	}

	out, err := generator.Render(&d, res)
	if err != nil {
		rollback()
		return View{}, err
	}
	artifacts, err := o.writer.Write(id, out)
	if err != nil {
		rollback()
		return View{}, err
	}

	now := o.now().UTC()
	rec := &registry.Record{
		ID:          id,
		Name:        d.Name,
		DisplayName: d.DisplayName,
		Status:      registry.StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
		Artifacts:   artifacts,
		Ports:       registry.Ports{HTTP: d.Gateway.HTTPPort, HTTPS: d.Gateway.HTTPSPort},
		Summary:     summarize(&d, res),
	}
	if err := o.registry.Create(rec); err != nil {
		rollback()
		return View{}, err
	}

	logging.Info("environment created", "id", id, "name", d.Name, "http", rec.Ports.HTTP)
	o.record(audit.EventCreate, id, "", string(registry.StatusCreated), "mode="+string(d.Mode))
	o.refreshGauge()
	return viewOf(rec), nil
}

func (o *Orchestrator) usedPorts() []int {
	var used []int
	for _, rec := range o.registry.List() {
		used = append(used, rec.Ports.HTTP, rec.Ports.HTTPS)
	}
	return used
}

// summarize builds the secret-free description stored with the record.
// Host paths are reported relative to the environments root.
func summarize(def *definition.Definition, res *paths.Resolved) registry.Summary {
	rel := func(p string) string {
		if p == "" {
			return ""
		}
		r, err := filepath.Rel(res.Root, p)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			return p
		}
		return r
	}

	s := registry.Summary{
		Mode:           string(def.Mode),
		GatewayName:    def.Gateway.Name,
		Edition:        def.Gateway.Edition,
		Timezone:       def.Gateway.Timezone,
		AdminUser:      def.Gateway.AdminUser,
		Image:          def.Image.Reference(),
		DataMount:      string(def.DataMount.Type),
		DataSource:     rel(res.DataSource),
		Backup:         rel(res.Backup),
		TagExport:      rel(res.TagExport),
		ModulesEnabled: append([]string(nil), def.Gateway.ModulesEnabled...),
		CPUs:           def.Resources.CPUs,
		MemoryMB:       def.Resources.MemoryMB,
	}
	if s.DataMount == "" {
		s.DataMount = string(definition.MountVolume)
	}
	for _, p := range res.Projects {
		s.Projects = append(s.Projects, rel(p.HostPath))
	}
	for _, r := range res.Bundle.ByKind(paths.KindModule) {
		s.Modules = append(s.Modules, r.Files...)
	}
	for _, r := range res.Bundle.ByKind(paths.KindDriver) {
		s.Drivers = append(s.Drivers, r.Files...)
	}
	for _, r := range res.Bundle.ByKind(paths.KindSecret) {
		s.Secrets = append(s.Secrets, r.Name)
	}
	if def.Identity != nil {
		s.Identity = fmt.Sprintf("%d:%d", def.Identity.UID, def.Identity.GID)
	}
	switch def.Connection.Type {
	case definition.ConnectionEthernet:
		if def.Connection.DeviceHost != "" {
			s.Connection = fmt.Sprintf("ethernet %s:%d", def.Connection.DeviceHost, def.Connection.DevicePort)
		}
	case definition.ConnectionSerial:
		s.Connection = fmt.Sprintf("serial %s@%d", def.Connection.SerialDevice, def.Connection.BaudRate)
	}
	return s
}
