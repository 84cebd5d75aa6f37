// Package zkmock provides an in-memory implementation of the zkacl.Conn
// interface for tests.
package zkmock

import (
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
)

type node struct {
	data    []byte
	acl     []zk.ACL
	version int32
}

// Store is a mutex-guarded map-backed stand-in for a ZooKeeper session.
// It enforces the session semantics the client relies on: parent-must-exist
// on create, node-exists on duplicate create, no-node on get/set/delete of
// missing paths, and not-empty on delete of a node with children.
type Store struct {
	mu    sync.Mutex
	nodes map[string]*node

	// DenyRead marks subtree roots that return ErrNoAuth on read.
	DenyRead map[string]bool
}

// New returns a store containing only the root node.
func New() *Store {
	return &Store{
		nodes:    map[string]*node{"/": {}},
		DenyRead: make(map[string]bool),
	}
}

// EnsurePath creates every node along p that does not yet exist, with empty
// data and an open ACL. Tests use it to lay down the fixed Kafka layout
// (/config/users, /kafka-acl, ...) that the broker creates on startup.
func (s *Store) EnsurePath(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := ""
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}
		cur += "/" + seg
		if _, ok := s.nodes[cur]; !ok {
			s.nodes[cur] = &node{acl: zk.WorldACL(zk.PermAll)}
		}
	}
}

func (s *Store) denied(p string) bool {
	for root := range s.DenyRead {
		if p == root || strings.HasPrefix(p, root+"/") {
			return true
		}
	}
	return false
}

func (s *Store) Get(p string) ([]byte, *zk.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied(p) {
		return nil, nil, zk.ErrNoAuth
	}
	n, ok := s.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return append([]byte(nil), n.data...), &zk.Stat{Version: n.version}, nil
}

func (s *Store) Children(p string) ([]string, *zk.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied(p) {
		return nil, nil, zk.ErrNoAuth
	}
	n, ok := s.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	var names []string
	for candidate := range s.nodes {
		if candidate == "/" || !strings.HasPrefix(candidate, prefix) {
			continue
		}
		rest := candidate[len(prefix):]
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, &zk.Stat{Version: n.version}, nil
}

func (s *Store) Create(p string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[p]; ok {
		return "", zk.ErrNodeExists
	}
	if _, ok := s.nodes[path.Dir(p)]; !ok {
		return "", zk.ErrNoNode
	}
	s.nodes[p] = &node{
		data: append([]byte(nil), data...),
		acl:  append([]zk.ACL(nil), acl...),
	}
	return p, nil
}

func (s *Store) Set(p string, data []byte, version int32) (*zk.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok {
		return nil, zk.ErrNoNode
	}
	if version != -1 && version != n.version {
		return nil, zk.ErrBadVersion
	}
	n.data = append([]byte(nil), data...)
	n.version++
	return &zk.Stat{Version: n.version}, nil
}

func (s *Store) Delete(p string, version int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok {
		return zk.ErrNoNode
	}
	if version != -1 && version != n.version {
		return zk.ErrBadVersion
	}
	prefix := p + "/"
	for candidate := range s.nodes {
		if strings.HasPrefix(candidate, prefix) {
			return zk.ErrNotEmpty
		}
	}
	delete(s.nodes, p)
	return nil
}

func (s *Store) GetACL(p string) ([]zk.ACL, *zk.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied(p) {
		return nil, nil, zk.ErrNoAuth
	}
	n, ok := s.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return append([]zk.ACL(nil), n.acl...), &zk.Stat{Version: n.version}, nil
}

func (s *Store) Close() {}

// Data returns a node's payload, or nil when absent.
func (s *Store) Data(p string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok {
		return nil
	}
	return append([]byte(nil), n.data...)
}

// ACLFor returns a node's ACL list, or nil when absent.
func (s *Store) ACLFor(p string) []zk.ACL {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok {
		return nil
	}
	return append([]zk.ACL(nil), n.acl...)
}

// Exists reports whether a node is present.
func (s *Store) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[p]
	return ok
}
