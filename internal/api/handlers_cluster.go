package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// --- Cluster Handlers (SPEC_FULL.md §5's node/cluster visibility) ---

// listNodes handles GET /api/v1/cluster/nodes.
func (s *Server) listNodes(c *gin.Context) {
	nodes, err := s.coordinator.GetActiveNodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get nodes: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// getLeader handles GET /api/v1/cluster/leader.
func (s *Server) getLeader(c *gin.Context) {
	if s.election == nil {
		c.JSON(http.StatusOK, gin.H{"leader": ""})
		return
	}

	leader, err := s.election.Leader(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leader: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leader": leader})
}
