package zkacl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-zookeeper/zk"
)

// Dump writes the subtree rooted at path to w: each node's ACLs and data
// (pretty-printed when the payload is JSON), recursing into children.
// Subtrees the session may not read are reported inline rather than
// aborting the walk. Debugging aid only.
func (c *Client) Dump(path string, w io.Writer) error {
	if path == "" {
		path = "/"
	}
	data, _, err := c.conn.Get(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > 0 {
		acl, _, err := c.conn.GetACL(path)
		if err != nil {
			return fmt.Errorf("read acl of %s: %w", path, err)
		}
		fmt.Fprintf(w, "%s has data:\n%v\n\t%s\n", path, acl, indentJSON(data))
	}
	children, _, err := c.conn.Children(path)
	if err != nil {
		return fmt.Errorf("list %s: %w", path, err)
	}
	base := path
	if base == "/" {
		base = ""
	}
	for _, child := range children {
		childPath := base + "/" + child
		if err := c.Dump(childPath, w); err != nil {
			if errors.Is(err, zk.ErrNoAuth) {
				fmt.Fprintf(w, "!! no access to %s\n", childPath)
				continue
			}
			return err
		}
	}
	return nil
}

// indentJSON pretty-prints JSON payloads and passes anything else through.
func indentJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}
