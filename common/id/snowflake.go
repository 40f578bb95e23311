// Package id assigns the snowflake ids used for event log rows and queue
// messages. Ids are time-ordered, so sorting by id sorts by creation time.
// Each process owns one node: the API server and the redelivery worker boot
// with distinct node ids so their id spaces never collide.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets the process-wide node. Call once at startup, before New.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns the next id from the process node.
func New() int64 {
	return node.Generate().Int64()
}
