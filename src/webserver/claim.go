package webserver

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/claimd/src/claim"
)

// ClaimService is implemented by claim.Orchestrator.
type ClaimService interface {
	Handle(ctx context.Context, p claim.Parameters, origin string) claim.Result
}

type Claim struct {
	svc ClaimService
}

func NewClaim(svc ClaimService) Claim {
	return Claim{svc: svc}
}

// Handle serves GET /api/v2/claim.
func (h Claim) Handle(c *gin.Context) {
	p := claim.ParseParameters(c.Request.URL.Query())
	res := h.svc.Handle(c.Request.Context(), p, c.ClientIP())

	c.Header("Cache-Control", "no-store")
	if res.Report == nil {
		c.String(res.Code, res.Body)
		return
	}
	c.JSON(res.Code, res.Report)
}
