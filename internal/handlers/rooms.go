package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/webrtc-relay/internal/models"
	"github.com/mossy-p/webrtc-relay/internal/signaling"
)

// ListRooms returns every active room with its size.
func ListRooms(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Rooms())
	}
}

// GetRoom returns one active room and its members.
func GetRoom(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := hub.Room(c.Param("roomId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

// Health reports liveness along with connection and room counts.
func Health(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      "ok",
			Connections: hub.Connections(),
			Rooms:       hub.RoomCount(),
		})
	}
}
