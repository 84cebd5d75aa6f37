package zkacl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"
)

// Permission describes one (principal, resource, operation) grant.
type Permission struct {
	// Principal is the bare user name; the "User:" prefix is added when
	// the entry is written.
	Principal string

	// ResourceType defaults to "topic". It is capitalized before use as
	// a path segment ("topic" -> "Topic").
	ResourceType string
	ResourceID   string

	// Operation defaults to "Read".
	Operation string

	// PermissionType defaults to "Allow".
	PermissionType string

	// Extended routes the grant to the prefixed-ACL namespace used for
	// resource-name prefix matching.
	Extended bool
}

func (p Permission) withDefaults() Permission {
	if p.ResourceType == "" {
		p.ResourceType = "topic"
	}
	if p.Operation == "" {
		p.Operation = "Read"
	}
	if p.PermissionType == "" {
		p.PermissionType = "Allow"
	}
	p.ResourceType = capitalize(p.ResourceType)
	return p
}

func (p Permission) principal() string {
	return "User:" + p.Principal
}

func (p Permission) nodePath() string {
	base := ACLPath
	if p.Extended {
		base = ExtendedACLPath
	}
	return base + "/" + p.ResourceType + "/" + p.ResourceID
}

// capitalize matches the broker's resource-type segment form: first rune
// upper, remainder lower ("TOPIC" -> "Topic").
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// aclEntry is one element of an ACL node's acls array, in the broker's
// field naming.
type aclEntry struct {
	Principal      string `json:"principal"`
	PermissionType string `json:"permissionType"`
	Operation      string `json:"operation"`
	Host           string `json:"host"`
}

// aclNode is the full ACL node payload.
type aclNode struct {
	Version int        `json:"version"`
	ACLs    []aclEntry `json:"acls"`
}

// UpsertPermission adds or replaces the grant for (principal, operation) on
// the resource. Any existing entry for the same pair is dropped first, so
// the node never holds two entries for one pair. A missing node is treated
// as an empty list and created. An ACL-change node is appended afterwards.
func (c *Client) UpsertPermission(p Permission) error {
	p = p.withDefaults()
	path := p.nodePath()

	node, err := c.readACLNode(path)
	if err != nil {
		return err
	}
	node.ACLs = append(dropMatching(node.ACLs, p.principal(), p.Operation), aclEntry{
		Principal:      p.principal(),
		PermissionType: p.PermissionType,
		Operation:      p.Operation,
		Host:           "*",
	})

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode acl node: %w", err)
	}
	if err := c.createOrSet(path, data, c.worldReadableACL()); err != nil {
		return fmt.Errorf("write acl node %s: %w", path, err)
	}
	c.log.Info("granted permission",
		zap.String("principal", p.principal()),
		zap.String("resource", p.ResourceType+":"+p.ResourceID),
		zap.String("operation", p.Operation),
		zap.Bool("extended", p.Extended))
	return c.reportACLChange(p)
}

// RemovePermission drops the grant for (principal, operation) from the
// resource's ACL node. When the node would be left empty it is deleted
// instead. The node must exist; removal from a missing node surfaces the
// store error. An ACL-change node is appended afterwards.
func (c *Client) RemovePermission(p Permission) error {
	p = p.withDefaults()
	path := p.nodePath()

	data, _, err := c.conn.Get(path)
	if err != nil {
		return fmt.Errorf("read acl node %s: %w", path, err)
	}
	var node aclNode
	if err := json.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("decode acl node %s: %w", path, err)
	}
	node.ACLs = dropMatching(node.ACLs, p.principal(), p.Operation)

	if len(node.ACLs) == 0 {
		if err := c.conn.Delete(path, -1); err != nil {
			return fmt.Errorf("delete acl node %s: %w", path, err)
		}
	} else {
		payload, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("encode acl node: %w", err)
		}
		if _, err := c.conn.Set(path, payload, -1); err != nil {
			return fmt.Errorf("write acl node %s: %w", path, err)
		}
	}
	c.log.Info("revoked permission",
		zap.String("principal", p.principal()),
		zap.String("resource", p.ResourceType+":"+p.ResourceID),
		zap.String("operation", p.Operation),
		zap.Bool("extended", p.Extended))
	return c.reportACLChange(p)
}

// readACLNode loads an ACL node, treating a missing node as version:1 with
// an empty list.
func (c *Client) readACLNode(path string) (aclNode, error) {
	empty := aclNode{Version: 1, ACLs: []aclEntry{}}
	data, _, err := c.conn.Get(path)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return empty, nil
		}
		return empty, fmt.Errorf("read acl node %s: %w", path, err)
	}
	var node aclNode
	if err := json.Unmarshal(data, &node); err != nil {
		return empty, fmt.Errorf("decode acl node %s: %w", path, err)
	}
	if node.ACLs == nil {
		node.ACLs = []aclEntry{}
	}
	return node, nil
}

// dropMatching filters out entries for the (principal, operation) pair.
func dropMatching(entries []aclEntry, principal, operation string) []aclEntry {
	kept := entries[:0:len(entries)]
	for _, e := range entries {
		if e.Principal == principal && e.Operation == operation {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
