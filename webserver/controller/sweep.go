package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nekomoe-dev/Gatekeeper/common"
	"github.com/nekomoe-dev/Gatekeeper/service"
)

// PostSweep runs one escalation sweep over the group behind the chat
// identifier.
func PostSweep(ctx *gin.Context) {
	groupID, err := service.GroupByChatIdentifier(ctx.Param("ChatIdentifier"))
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	acted, err := engine.Sweep(groupID)
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	common.ResponseSuccess(ctx, gin.H{
		"Acted": acted,
	})
}

// PostSweepAll sweeps every group with at least one pending verification.
func PostSweepAll(ctx *gin.Context) {
	acted, err := engine.SweepAll()
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	common.ResponseSuccess(ctx, gin.H{
		"Acted": acted,
	})
}
