// Package idgen issues human readable document numbers.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/erp/shopledger/internal/domain/recovery"
)

// DefaultReceiptPrefix is prepended to every receipt number
const DefaultReceiptPrefix = "RCV"

// ReceiptGenerator issues time ordered receipt numbers such as RCV-1789012345678901234.
// Numbers are unique across instances as long as each instance has its own node id.
type ReceiptGenerator struct {
	node   *snowflake.Node
	prefix string
}

// NewReceiptGenerator creates a generator for node (0..1023)
func NewReceiptGenerator(node int64, prefix string) (*ReceiptGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", node, err)
	}
	if prefix == "" {
		prefix = DefaultReceiptPrefix
	}
	return &ReceiptGenerator{node: n, prefix: prefix}, nil
}

// Next returns a new receipt number
func (g *ReceiptGenerator) Next() string {
	return g.prefix + "-" + g.node.Generate().String()
}

var _ recovery.ReceiptNumberGenerator = (*ReceiptGenerator)(nil)
