package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nekomoe-dev/Gatekeeper/common"
	"github.com/nekomoe-dev/Gatekeeper/service"
)

var engine *service.Engine

func SetEngine(e *service.Engine) {
	engine = e
}

// GetPending lists the pending verifications of the group behind the chat
// identifier, with attempts left and warning counters.
func GetPending(ctx *gin.Context) {
	groupID, err := service.GroupByChatIdentifier(ctx.Param("ChatIdentifier"))
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	recs, err := service.ListPendingByGroup(groupID)
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	queued, err := service.QueuedForRemoval(groupID)
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	pending := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		count, err := service.WarningCount(rec.Key)
		if err != nil {
			common.ResponseError(ctx, err)
			return
		}
		pending = append(pending, gin.H{
			"UserID":            rec.Key.UserID,
			"RemainingAttempts": rec.RemainingAttempts,
			"CreatedAt":         rec.CreatedAt,
			"WarningCount":      count,
		})
	}
	common.ResponseSuccess(ctx, gin.H{
		"Pending":          pending,
		"QueuedForRemoval": queued,
	})
}
