package registry

import "github.com/go-zookeeper/zk"

// zkConn is the narrow slice of *zk.Conn this package depends on. The seam
// lets registry/discovery be tested against a fake in-memory coordinator
// instead of a live ZooKeeper ensemble.
type zkConn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Exists(path string) (bool, *zk.Stat, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Delete(path string, version int32) error
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	State() zk.State
}

var worldACL = zk.WorldACL(zk.PermAll)
