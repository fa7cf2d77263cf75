package registry

import (
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/metrics"
)

// Callback is invoked after a service's instance list changes. It runs on
// the watch-event goroutine, outside any Discovery lock, so it may call
// back into Discovery freely.
type Callback func(service string, instances []Instance)

// Discovery maintains a local cache of live instances per service, kept
// fresh by ZooKeeper child watches. Reads vastly outnumber writes, so the
// instance map sits behind a RWMutex.
type Discovery struct {
	conn     zkConn
	rootPath string
	logger   *slog.Logger

	mu        sync.RWMutex
	instances map[string][]Instance

	cbMu      sync.Mutex
	callbacks map[string]Callback
	watched   map[string]bool

	rndMu sync.Mutex
	rnd   *rand.Rand

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDiscovery(conn zkConn, rootPath string, logger *slog.Logger) *Discovery {
	if rootPath == "" {
		rootPath = "/services"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		conn:      conn,
		rootPath:  rootPath,
		logger:    logger,
		instances: make(map[string][]Instance),
		callbacks: make(map[string]Callback),
		watched:   make(map[string]bool),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		done:      make(chan struct{}),
	}
}

func (d *Discovery) servicePath(service string) string {
	return d.rootPath + "/" + service
}

// serviceFromPath derives the service name from a watched child path.
func (d *Discovery) serviceFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, d.rootPath+"/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

// Subscribe installs a child watch on the service's registry path and
// performs one immediate refresh, so callers never observe an empty cache
// merely because no membership change has happened yet. The optional
// callback fires after every refresh the watch loop performs: the
// reconcile after each watch re-arm and the one after each change event.
func (d *Discovery) Subscribe(service string, cb Callback) error {
	if service == "" {
		return apperr.New(apperr.InvalidArgument, "service name must not be empty")
	}

	d.cbMu.Lock()
	if cb != nil {
		d.callbacks[service] = cb
	}
	alreadyWatched := d.watched[service]
	d.watched[service] = true
	d.cbMu.Unlock()

	if err := d.Refresh(service); err != nil {
		d.logger.Warn("discovery_initial_refresh_failed", "service", service, "error", err)
	}

	if !alreadyWatched {
		d.wg.Add(1)
		go d.watchLoop(service)
	}
	return nil
}

// Unsubscribe removes the per-service callback. The watch itself stays
// armed so the cache keeps refreshing for other callers of GetInstances.
func (d *Discovery) Unsubscribe(service string) {
	d.cbMu.Lock()
	delete(d.callbacks, service)
	d.cbMu.Unlock()
}

// watchLoop re-arms a child watch for service until Close. ZooKeeper
// watches are one-shot, so each delivered event is processed and then a
// fresh ChildrenW call installs the next watch.
func (d *Discovery) watchLoop(service string) {
	defer d.wg.Done()
	path := d.servicePath(service)

	for {
		select {
		case <-d.done:
			return
		default:
		}

		_, _, events, err := d.conn.ChildrenW(path)
		if err != nil {
			d.logger.Warn("discovery_watch_arm_failed", "service", service, "error", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-d.done:
				return
			}
		}

		// Changes that landed between the last event and this re-arm
		// produced no notification; reconcile the cache now that the
		// watch is in place, and notify the callback like any refresh.
		d.onChildrenChanged(path)

		select {
		case ev := <-events:
			if ev.Type == zk.EventNodeChildrenChanged || ev.Type == zk.EventNodeCreated || ev.Type == zk.EventNodeDeleted {
				d.onChildrenChanged(ev.Path)
			}
		case <-d.done:
			return
		}
	}
}

// onChildrenChanged refreshes the cache for the changed service and then
// invokes its callback. The callback reference is captured under the lock
// but invoked outside it, so a callback may Subscribe/Unsubscribe without
// deadlocking.
func (d *Discovery) onChildrenChanged(path string) {
	service := d.serviceFromPath(path)
	if service == "" {
		return
	}
	if err := d.Refresh(service); err != nil {
		d.logger.Warn("discovery_refresh_failed", "service", service, "error", err)
		return
	}

	d.cbMu.Lock()
	cb := d.callbacks[service]
	d.cbMu.Unlock()

	if cb != nil {
		cb(service, d.GetInstances(service))
	}
}

// Refresh lists the service's children, decodes each node body, and
// replaces the cached slice. A node whose body fails to decode is dropped
// with a warn log and never reaches the cache.
func (d *Discovery) Refresh(service string) error {
	path := d.servicePath(service)
	children, _, err := d.conn.Children(path)
	if err != nil {
		if err == zk.ErrNoNode {
			d.mu.Lock()
			d.instances[service] = nil
			d.mu.Unlock()
			return nil
		}
		return apperr.Newf(apperr.ServiceUnavailable, "list service children: %v", err)
	}

	fresh := make([]Instance, 0, len(children))
	for _, child := range children {
		body, _, err := d.conn.Get(path + "/" + child)
		if err != nil {
			// The node may have vanished between Children and Get; a
			// dead instance is simply not cached.
			d.logger.Warn("discovery_node_read_failed", "service", service, "node", child, "error", err)
			continue
		}
		inst, err := unmarshalInstance(body)
		if err != nil {
			d.logger.Warn("discovery_node_decode_failed", "service", service, "node", child, "error", err)
			continue
		}
		fresh = append(fresh, inst)
	}

	d.mu.Lock()
	d.instances[service] = fresh
	d.mu.Unlock()
	metrics.DiscoveryRefreshes.WithLabelValues(service).Inc()
	return nil
}

// GetInstances returns a snapshot of the cached instances for service.
func (d *Discovery) GetInstances(service string) []Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cached := d.instances[service]
	out := make([]Instance, len(cached))
	copy(out, cached)
	return out
}

// SelectInstance picks a cached instance uniformly at random, or nil when
// none are known.
func (d *Discovery) SelectInstance(service string) *Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cached := d.instances[service]
	if len(cached) == 0 {
		return nil
	}
	inst := cached[d.intn(len(cached))]
	return &inst
}

// SelectInstanceWeighted picks a cached instance with probability
// proportional to its weight. When the weight sum is non-positive it falls
// back to uniform selection.
func (d *Discovery) SelectInstanceWeighted(service string) *Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cached := d.instances[service]
	if len(cached) == 0 {
		return nil
	}

	total := 0
	for _, inst := range cached {
		if inst.Weight > 0 {
			total += inst.Weight
		}
	}
	if total <= 0 {
		inst := cached[d.intn(len(cached))]
		return &inst
	}

	r := d.intn(total) + 1
	for _, inst := range cached {
		if inst.Weight > 0 {
			r -= inst.Weight
			if r <= 0 {
				return &inst
			}
		}
	}
	inst := cached[len(cached)-1]
	return &inst
}

func (d *Discovery) intn(n int) int {
	d.rndMu.Lock()
	defer d.rndMu.Unlock()
	return d.rnd.Intn(n)
}

// Close stops every watch loop. Safe to call more than once.
func (d *Discovery) Close() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}
