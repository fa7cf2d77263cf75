// Package registry implements service registration and discovery over
// ZooKeeper: each live process publishes itself as an ephemeral node under
// a persistent per-service path, and peers watch those paths to keep a
// local instance cache fresh.
package registry

import (
	"encoding/json"
	"fmt"
)

// Instance describes one live service endpoint, the JSON body stored at
// its ephemeral ZooKeeper node.
type Instance struct {
	ServiceName string            `json:"service_name"`
	InstanceID  string            `json:"instance_id"`
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	Weight      int               `json:"weight"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Address returns "host:port".
func (i Instance) Address() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// Valid reports whether the instance has the minimum shape needed to
// register or be selected.
func (i Instance) Valid() bool {
	return i.Host != "" && i.Port > 0
}

func (i Instance) marshal() ([]byte, error) {
	return json.Marshal(i)
}

// unmarshalInstance decodes a node body. A decode failure is the caller's
// signal to drop the entry from the cache.
func unmarshalInstance(body []byte) (Instance, error) {
	var inst Instance
	if err := json.Unmarshal(body, &inst); err != nil {
		return Instance{}, err
	}
	return inst, nil
}
