package handler

import "math"

// distributeNodes picks a node count and cores-per-node request for a
// PBS job given the total cores required and the system's per-node
// core count, when the caller specified neither explicitly. Ports the
// ceiling-division balancing used by the original scheduler job model:
// 192 cores on a 128-core-per-node system requests 2 nodes of 96 cores
// each rather than 2 nodes of 128.
func distributeNodes(coresRequired, coresPerNodeOnSystem int) (nodes, coresPerNode int) {
	nodes = int(math.Ceil(float64(coresRequired) / float64(coresPerNodeOnSystem)))
	coresPerNode = int(math.Ceil(
		float64(coresPerNodeOnSystem) - float64(nodes*coresPerNodeOnSystem-coresRequired)/float64(nodes),
	))
	return nodes, coresPerNode
}
