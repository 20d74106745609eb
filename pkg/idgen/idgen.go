// Package idgen 生成订单号
package idgen

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrderNumberPrefix 订单号前缀
const OrderNumberPrefix = "SF-"

// Generator 订单号生成器
type Generator struct {
	node *snowflake.Node
}

// New 按节点号创建生成器，节点号范围 0-1023
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// NextOrderNumber 生成形如 SF-1A2B3C4D5E6F 的订单号
func (g *Generator) NextOrderNumber() string {
	return OrderNumberPrefix + strings.ToUpper(g.node.Generate().Base36())
}
