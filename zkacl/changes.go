package zkacl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// userChange is the payload of a /config/changes node.
type userChange struct {
	Version    int    `json:"version"`
	EntityPath string `json:"entity_path"`
}

// extendedACLChange is the payload of an extended ACL-change node. Plain
// ACL changes carry a bare "Type:id" string instead.
type extendedACLChange struct {
	Version      int    `json:"version"`
	ResourceType string `json:"resourceType"`
	Name         string `json:"name"`
	PatternType  string `json:"patternType"`
}

// NextChangeSequence computes the name of the next change node under
// parent: prefix plus a 10-digit zero-padded number one past the highest
// existing sibling (0 when none).
//
// This is a read-then-write scheme, not an atomic counter: two writers
// listing the same parent concurrently can compute the same name and
// collide on create. Provisioning runs must be serialized externally.
func (c *Client) NextChangeSequence(parent, prefix string) (string, error) {
	children, _, err := c.conn.Children(parent)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", parent, err)
	}
	next := 0
	for _, child := range children {
		suffix, ok := strings.CutPrefix(child, prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, seqWidth, next), nil
}

// appendChange creates the next change node under parent with the given
// payload. Change nodes are world readable so every broker can watch them,
// and they are never mutated or deleted by this client.
func (c *Client) appendChange(parent, prefix string, payload []byte) (string, error) {
	name, err := c.NextChangeSequence(parent, prefix)
	if err != nil {
		return "", err
	}
	path := parent + "/" + name
	if _, err := c.conn.Create(path, payload, 0, c.worldReadableACL()); err != nil {
		return "", fmt.Errorf("create change node %s: %w", path, err)
	}
	c.log.Debug("appended change node", zap.String("path", path))
	return name, nil
}

// reportUserChange signals brokers that a user's credentials changed.
func (c *Client) reportUserChange(username string) error {
	payload, err := json.Marshal(userChange{Version: 2, EntityPath: "users/" + username})
	if err != nil {
		return fmt.Errorf("encode user change: %w", err)
	}
	_, err = c.appendChange(UserChangesPath, userChangePrefix, payload)
	return err
}

// reportACLChange signals brokers that a resource's ACL changed. The
// permission must already carry its defaulted, capitalized resource type.
func (c *Client) reportACLChange(p Permission) error {
	parent := ACLChangesPath
	var payload []byte
	if p.Extended {
		parent = ExtendedACLChangesPath
		var err error
		payload, err = json.Marshal(extendedACLChange{
			Version:      1,
			ResourceType: p.ResourceType,
			Name:         p.ResourceID,
			PatternType:  "PREFIXED",
		})
		if err != nil {
			return fmt.Errorf("encode acl change: %w", err)
		}
	} else {
		payload = []byte(p.ResourceType + ":" + p.ResourceID)
	}
	_, err := c.appendChange(parent, aclChangePrefix, payload)
	return err
}
