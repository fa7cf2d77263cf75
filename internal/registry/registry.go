package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-zookeeper/zk"
	"github.com/relay-id/authsvc/internal/apperr"
)

// Registrar registers exactly one service instance per process.
type Registrar struct {
	conn     zkConn
	rootPath string
	logger   *slog.Logger

	mu         sync.Mutex
	instance   Instance
	path       string
	registered bool
}

func NewRegistrar(conn zkConn, rootPath string, logger *slog.Logger) *Registrar {
	if rootPath == "" {
		rootPath = "/services"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{conn: conn, rootPath: rootPath, logger: logger}
}

func (r *Registrar) servicePath(service string) string {
	return fmt.Sprintf("%s/%s", r.rootPath, service)
}

func (r *Registrar) instancePath(inst Instance) string {
	return fmt.Sprintf("%s/%s/%s", r.rootPath, inst.ServiceName, inst.Address())
}

func (r *Registrar) ensurePersistentPath(path string) error {
	exists, _, err := r.conn.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = r.conn.Create(path, nil, 0, worldACL)
	if err != nil && err != zk.ErrNodeExists {
		return err
	}
	return nil
}

// Register publishes inst as an ephemeral node. The node's disappearance
// on process death (session loss) is the sole liveness signal discovery
// relies on.
func (r *Registrar) Register(inst Instance) error {
	if r.conn.State() != zk.StateHasSession {
		return apperr.New(apperr.ServiceUnavailable, "coordination service not connected")
	}
	if !inst.Valid() {
		return apperr.New(apperr.InvalidArgument, "invalid service instance")
	}

	if err := r.ensurePersistentPath(r.rootPath); err != nil {
		return apperr.Newf(apperr.ServiceUnavailable, "create registry root: %v", err)
	}
	if err := r.ensurePersistentPath(r.servicePath(inst.ServiceName)); err != nil {
		return apperr.Newf(apperr.ServiceUnavailable, "create service path: %v", err)
	}

	body, err := inst.marshal()
	if err != nil {
		return apperr.Newf(apperr.Internal, "marshal instance: %v", err)
	}

	path := r.instancePath(inst)
	created, err := r.conn.Create(path, body, zk.FlagEphemeral, worldACL)
	if err != nil {
		return apperr.Newf(apperr.ServiceUnavailable, "register instance: %v", err)
	}

	r.mu.Lock()
	r.instance = inst
	r.path = created
	r.registered = true
	r.mu.Unlock()

	r.logger.Info("registry_registered", "service", inst.ServiceName, "address", inst.Address())
	return nil
}

// Unregister deletes the ephemeral node. Idempotent.
func (r *Registrar) Unregister() error {
	r.mu.Lock()
	if !r.registered {
		r.mu.Unlock()
		return nil
	}
	path := r.path
	r.registered = false
	r.mu.Unlock()

	if err := r.conn.Delete(path, -1); err != nil && err != zk.ErrNoNode {
		return apperr.Newf(apperr.ServiceUnavailable, "unregister instance: %v", err)
	}
	return nil
}

// Update overwrites the registered node's body with inst's JSON.
func (r *Registrar) Update(inst Instance) error {
	r.mu.Lock()
	if !r.registered {
		r.mu.Unlock()
		return apperr.New(apperr.Internal, "instance is not registered")
	}
	path := r.path
	r.mu.Unlock()

	body, err := inst.marshal()
	if err != nil {
		return apperr.Newf(apperr.Internal, "marshal instance: %v", err)
	}
	if _, err := r.conn.Set(path, body, -1); err != nil {
		return apperr.Newf(apperr.ServiceUnavailable, "update instance: %v", err)
	}

	r.mu.Lock()
	r.instance = inst
	r.mu.Unlock()
	return nil
}

// IsRegistered reports whether this registrar currently owns a live node.
func (r *Registrar) IsRegistered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered
}
