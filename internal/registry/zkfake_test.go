package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
)

// fakeZK is an in-memory stand-in for a ZooKeeper ensemble: a flat
// path→node map plus one-shot child watches, enough to drive the
// registrar and discovery without a live server.
type fakeZK struct {
	mu      sync.Mutex
	nodes   map[string]*fakeNode
	watches map[string][]chan zk.Event
	state   zk.State

	failGet map[string]bool
}

type fakeNode struct {
	data      []byte
	ephemeral bool
}

func newFakeZK() *fakeZK {
	return &fakeZK{
		nodes:   make(map[string]*fakeNode),
		watches: make(map[string][]chan zk.Event),
		state:   zk.StateHasSession,
		failGet: make(map[string]bool),
	}
}

func (f *fakeZK) State() zk.State { return f.state }

func (f *fakeZK) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; ok {
		return "", zk.ErrNodeExists
	}
	parent := parentPath(path)
	if parent != "" {
		if _, ok := f.nodes[parent]; !ok {
			return "", zk.ErrNoNode
		}
	}
	f.nodes[path] = &fakeNode{data: data, ephemeral: flags&zk.FlagEphemeral != 0}
	f.fireLocked(parent)
	return path, nil
}

func (f *fakeZK) Exists(path string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[path]
	return ok, &zk.Stat{}, nil
}

func (f *fakeZK) Set(path string, data []byte, version int32) (*zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[path]
	if !ok {
		return nil, zk.ErrNoNode
	}
	n.data = data
	return &zk.Stat{}, nil
}

func (f *fakeZK) Delete(path string, version int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; !ok {
		return zk.ErrNoNode
	}
	delete(f.nodes, path)
	f.fireLocked(parentPath(path))
	return nil
}

func (f *fakeZK) Children(path string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; !ok {
		return nil, nil, zk.ErrNoNode
	}
	return f.childrenLocked(path), &zk.Stat{}, nil
}

func (f *fakeZK) ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; !ok {
		return nil, nil, nil, zk.ErrNoNode
	}
	ch := make(chan zk.Event, 1)
	f.watches[path] = append(f.watches[path], ch)
	return f.childrenLocked(path), &zk.Stat{}, ch, nil
}

func (f *fakeZK) Get(path string) ([]byte, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet[path] {
		return nil, nil, zk.ErrConnectionClosed
	}
	n, ok := f.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return n.data, &zk.Stat{}, nil
}

func (f *fakeZK) childrenLocked(path string) []string {
	prefix := path + "/"
	var out []string
	for p := range f.nodes {
		if strings.HasPrefix(p, prefix) && !strings.Contains(p[len(prefix):], "/") {
			out = append(out, p[len(prefix):])
		}
	}
	sort.Strings(out)
	return out
}

// fireLocked delivers one NodeChildrenChanged event per registered watch
// on path and discards the watches, matching ZooKeeper's one-shot watch
// semantics.
func (f *fakeZK) fireLocked(path string) {
	for _, ch := range f.watches[path] {
		ch <- zk.Event{Type: zk.EventNodeChildrenChanged, Path: path}
	}
	delete(f.watches, path)
}

// killSession simulates process death: every ephemeral node vanishes.
func (f *fakeZK) killSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	var parents []string
	for p, n := range f.nodes {
		if n.ephemeral {
			delete(f.nodes, p)
			parents = append(parents, parentPath(p))
		}
	}
	for _, p := range parents {
		f.fireLocked(p)
	}
}

func parentPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return ""
	}
	return path[:i]
}
