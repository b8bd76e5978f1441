package artnet

import (
	"net"
	"sync"
	"time"

	"github.com/nerrad567/dmx-core/internal/dmx"
)

// Node is a remote Art-Net device learned from ArtPollReply.
//
// Nodes are keyed by the immutable (source IP, bind index) pair; all
// other fields are refreshed on every reply.
type Node struct {
	// Name is the node's short name.
	Name string

	// LongName is the node's long name.
	LongName string

	// IP is the address replies arrived from.
	IP net.IP

	// Port is the node's declared UDP port.
	Port uint16

	// MAC is the node's hardware address.
	MAC [6]byte

	// BindIndex distinguishes multiple logical nodes behind one IP.
	BindIndex uint8

	// Addresses are the port addresses the node currently outputs.
	Addresses []dmx.PortAddress

	// LastSeen is the arrival time of the most recent reply.
	LastSeen time.Time
}

// nodeKey is the identity of a node: replies from the same IP and bind
// index always describe the same logical device.
type nodeKey struct {
	ip        string
	bindIndex uint8
}

// addressDiff describes how a node's advertised addresses changed
// between two consecutive replies.
type addressDiff struct {
	added   []dmx.PortAddress
	removed []dmx.PortAddress
}

// nodeRegistry owns all discovered-node state. It replaces any notion
// of process-wide node tables: the registry is constructed with the
// server and torn down with it.
type nodeRegistry struct {
	mu        sync.Mutex
	nodes     map[nodeKey]*Node
	byAddress map[dmx.PortAddress]map[nodeKey]struct{}
}

func newNodeRegistry() *nodeRegistry {
	return &nodeRegistry{
		nodes:     make(map[nodeKey]*Node),
		byAddress: make(map[dmx.PortAddress]map[nodeKey]struct{}),
	}
}

// upsert records an ArtPollReply from ip.
//
// Returns the node, whether it was newly discovered, and the address
// diff against the node's previous advertisement.
func (r *nodeRegistry) upsert(ip net.IP, reply PollReply, now time.Time) (*Node, bool, addressDiff) {
	key := nodeKey{ip: ip.String(), bindIndex: reply.BindIndex}
	addresses := reply.OutputAddresses()

	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[key]
	if !exists {
		node = &Node{BindIndex: reply.BindIndex}
		r.nodes[key] = node
	}

	var diff addressDiff
	if exists {
		diff = diffAddresses(node.Addresses, addresses)
	} else {
		diff = addressDiff{added: addresses}
	}

	node.Name = reply.ShortName
	node.LongName = reply.LongName
	node.IP = ip
	node.Port = reply.Port
	node.MAC = reply.MAC
	node.Addresses = addresses
	node.LastSeen = now

	for _, addr := range diff.removed {
		r.unindexLocked(addr, key)
	}
	for _, addr := range diff.added {
		r.indexLocked(addr, key)
	}

	return node, !exists, diff
}

// removeStale evicts every node whose LastSeen predates cutoff and
// returns the evicted nodes with the addresses they still advertised.
func (r *nodeRegistry) removeStale(cutoff time.Time) []*Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Node
	for key, node := range r.nodes {
		if node.LastSeen.Before(cutoff) {
			for _, addr := range node.Addresses {
				r.unindexLocked(addr, key)
			}
			delete(r.nodes, key)
			evicted = append(evicted, node)
		}
	}
	return evicted
}

// targetsFor returns the UDP addresses of every node subscribed to addr.
func (r *nodeRegistry) targetsFor(addr dmx.PortAddress) []*net.UDPAddr {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.byAddress[addr]
	targets := make([]*net.UDPAddr, 0, len(keys))
	for key := range keys {
		node := r.nodes[key]
		if node == nil {
			continue
		}
		port := int(node.Port)
		if port == 0 {
			port = UDPPort
		}
		targets = append(targets, &net.UDPAddr{IP: node.IP, Port: port})
	}
	return targets
}

// nameFor returns the short name of the node at ip, or "" when unknown.
func (r *nodeRegistry) nameFor(ip net.IP) string {
	ipStr := ip.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, node := range r.nodes {
		if key.ip == ipStr {
			return node.Name
		}
	}
	return ""
}

// count returns the number of tracked nodes.
func (r *nodeRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// all returns a snapshot of every tracked node.
func (r *nodeRegistry) all() []*Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := make([]*Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

func (r *nodeRegistry) indexLocked(addr dmx.PortAddress, key nodeKey) {
	set, ok := r.byAddress[addr]
	if !ok {
		set = make(map[nodeKey]struct{})
		r.byAddress[addr] = set
	}
	set[key] = struct{}{}
}

func (r *nodeRegistry) unindexLocked(addr dmx.PortAddress, key nodeKey) {
	if set, ok := r.byAddress[addr]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(r.byAddress, addr)
		}
	}
}

// diffAddresses computes which addresses appeared and disappeared
// between two advertisements.
func diffAddresses(old, current []dmx.PortAddress) addressDiff {
	oldSet := make(map[dmx.PortAddress]struct{}, len(old))
	for _, addr := range old {
		oldSet[addr] = struct{}{}
	}
	currentSet := make(map[dmx.PortAddress]struct{}, len(current))
	for _, addr := range current {
		currentSet[addr] = struct{}{}
	}

	var diff addressDiff
	for _, addr := range current {
		if _, ok := oldSet[addr]; !ok {
			diff.added = append(diff.added, addr)
		}
	}
	for _, addr := range old {
		if _, ok := currentSet[addr]; !ok {
			diff.removed = append(diff.removed, addr)
		}
	}
	return diff
}
