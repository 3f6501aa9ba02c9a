package controllers

import (
	"fmt"
	"strings"

	"sweepsapp/middleware"
	"sweepsapp/models"
	"sweepsapp/services"

	"github.com/gofiber/fiber/v2"
)

func audit(c *fiber.Ctx, action, target string, details interface{}) {
	svc.Admin.Audit(c.UserContext(), middleware.AdminID(c), action, target, details)
}

// AdminStats - GET /api/v1/admin/stats
func AdminStats(c *fiber.Ctx) error {
	st, err := svc.Admin.Stats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, st)
}

// AdminCreateUser - POST /api/v1/admin/users
func AdminCreateUser(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	u, err := svc.Auth.CreateAdmin(c.UserContext(), req.Email, req.Password, req.Role)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "admin.create", fmt.Sprintf("admin:%d", u.ID), models.H{"email": u.Email, "role": u.Role})
	return created(c, u, false)
}

// AdminAuditLog - GET /api/v1/admin/audit?target=player:1
func AdminAuditLog(c *fiber.Ctx) error {
	entries, err := svc.Admin.AuditLog(c.UserContext(), c.Query("target"), page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, entries)
}

// players

// AdminSearchPlayers - GET /api/v1/admin/players?q=&status=
func AdminSearchPlayers(c *fiber.Ctx) error {
	players, err := svc.Admin.Search(c.UserContext(), c.Query("q"), c.Query("status"), page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, players)
}

// AdminPlayerDetail - GET /api/v1/admin/players/:id
func AdminPlayerDetail(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	d, err := svc.Admin.Detail(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, d)
}

// AdminSetPlayerStatus - PUT /api/v1/admin/players/:id/status
func AdminSetPlayerStatus(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	if err := svc.Admin.SetStatus(c.UserContext(), middleware.AdminID(c), id, req.Status, req.Reason); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"player_id": id, "status": req.Status})
}

// AdminAdjustBalance - POST /api/v1/admin/players/:id/adjust
func AdminAdjustBalance(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var req services.Adjustment
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	req.PlayerID = id
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)
	txn, replayed, err := svc.Admin.Adjust(c.UserContext(), middleware.AdminID(c), middleware.Role(c), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, txn, replayed)
}

// kyc

// AdminListKYC - GET /api/v1/admin/kyc?status=pending
func AdminListKYC(c *fiber.Ctx) error {
	var (
		list []models.KYCSubmission
		err  error
	)
	if status := c.Query("status"); status != "" {
		list, err = svc.KYC.List(c.UserContext(), status, page(c))
	} else {
		list, err = svc.KYC.ReviewQueue(c.UserContext(), page(c))
	}
	if err != nil {
		return fail(c, err)
	}
	return ok(c, list)
}

// AdminApproveKYC - POST /api/v1/admin/kyc/:id/approve
func AdminApproveKYC(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	k, err := svc.KYC.Approve(c.UserContext(), id, middleware.AdminID(c))
	if err != nil {
		return fail(c, err)
	}
	audit(c, "kyc.approve", fmt.Sprintf("player:%d", k.PlayerID), models.H{"kyc_id": k.ID})
	return ok(c, k)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// AdminRejectKYC - POST /api/v1/admin/kyc/:id/reject
func AdminRejectKYC(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var req reasonRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	k, err := svc.KYC.Reject(c.UserContext(), id, middleware.AdminID(c), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "kyc.reject", fmt.Sprintf("player:%d", k.PlayerID), models.H{"kyc_id": k.ID, "reason": req.Reason})
	return ok(c, k)
}

// redemptions

// AdminRedemptionQueue - GET /api/v1/admin/redemptions?status=pending,review
func AdminRedemptionQueue(c *fiber.Ctx) error {
	var statuses []string
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, s)
		}
	}
	rs, err := svc.Redemptions.Queue(c.UserContext(), statuses, page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rs)
}

// AdminApproveRedemption - POST /api/v1/admin/redemptions/:id/approve
func AdminApproveRedemption(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	r, err := svc.Redemptions.Approve(c.UserContext(), id, middleware.AdminID(c))
	if err != nil {
		return fail(c, err)
	}
	audit(c, "redemption.approve", fmt.Sprintf("player:%d", r.PlayerID), models.H{"redemption_id": r.ID, "amount": r.Amount.String()})
	return ok(c, r)
}

// AdminRejectRedemption - POST /api/v1/admin/redemptions/:id/reject
func AdminRejectRedemption(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var req reasonRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	r, err := svc.Redemptions.Reject(c.UserContext(), id, middleware.AdminID(c), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "redemption.reject", fmt.Sprintf("player:%d", r.PlayerID), models.H{"redemption_id": r.ID, "reason": req.Reason})
	return ok(c, r)
}

// fraud

// AdminFraudFlags - GET /api/v1/admin/fraud/flags?status=open&player_id=
func AdminFraudFlags(c *fiber.Ctx) error {
	flags, err := svc.Fraud.ListFlags(c.UserContext(), c.Query("status", models.FlagOpen), int64(c.QueryInt("player_id", 0)), page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, flags)
}

// AdminResolveFlag - POST /api/v1/admin/fraud/flags/:id/resolve
func AdminResolveFlag(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var req struct {
		Note string `json:"note"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	f, err := svc.Fraud.Resolve(c.UserContext(), id, req.Note, middleware.AdminID(c))
	if err != nil {
		return fail(c, err)
	}
	audit(c, "fraud.resolve", fmt.Sprintf("player:%d", f.PlayerID), models.H{"flag_id": f.ID, "note": req.Note})
	return ok(c, f)
}

// store

// AdminListPackages - GET /api/v1/admin/packages
func AdminListPackages(c *fiber.Ctx) error {
	pkgs, err := svc.Store.ListAll(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, pkgs)
}

// AdminCreatePackage - POST /api/v1/admin/packages
func AdminCreatePackage(c *fiber.Ctx) error {
	var req models.Package
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	p, err := svc.Store.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "package.create", fmt.Sprintf("package:%d", p.ID), p)
	return created(c, p, false)
}

// AdminUpdatePackage - PUT /api/v1/admin/packages/:id
func AdminUpdatePackage(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var req models.Package
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	req.ID = id
	p, err := svc.Store.Update(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "package.update", fmt.Sprintf("package:%d", p.ID), p)
	return ok(c, p)
}

// AdminDeactivatePackage - DELETE /api/v1/admin/packages/:id
func AdminDeactivatePackage(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	if err := svc.Store.Deactivate(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	audit(c, "package.deactivate", fmt.Sprintf("package:%d", id), nil)
	return ok(c, fiber.Map{"id": id, "active": false})
}

// games

// AdminListGames - GET /api/v1/admin/games?category=
func AdminListGames(c *fiber.Ctx) error {
	list, err := svc.Games.AllGames(c.UserContext(), c.Query("category"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, list)
}

// AdminUpsertGame - PUT /api/v1/admin/games
func AdminUpsertGame(c *fiber.Ctx) error {
	var req models.Game
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	g, err := svc.Games.UpsertGame(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "game.upsert", "game:"+g.Slug, g)
	return ok(c, g)
}

// AdminSetGameActive - PUT /api/v1/admin/games/:slug/active
func AdminSetGameActive(c *fiber.Ctx) error {
	var req struct {
		Active bool `json:"active"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	g, err := svc.Games.SetActive(c.UserContext(), c.Params("slug"), req.Active)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "game.active", "game:"+g.Slug, models.H{"active": req.Active})
	return ok(c, g)
}

// jackpots

// AdminListJackpots - GET /api/v1/admin/jackpots
func AdminListJackpots(c *fiber.Ctx) error {
	pools, err := svc.Jackpots.ListAll(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, pools)
}

// AdminCreateJackpot - POST /api/v1/admin/jackpots
func AdminCreateJackpot(c *fiber.Ctx) error {
	var req models.JackpotPool
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	p, err := svc.Jackpots.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "jackpot.create", fmt.Sprintf("pool:%d", p.ID), p)
	return created(c, p, false)
}

// AdminUpdateJackpot - PUT /api/v1/admin/jackpots/:id
func AdminUpdateJackpot(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var req models.JackpotPool
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	req.ID = id
	p, err := svc.Jackpots.Update(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	audit(c, "jackpot.update", fmt.Sprintf("pool:%d", p.ID), p)
	return ok(c, p)
}

// AdminJackpotWins - GET /api/v1/admin/jackpots/:id/wins
func AdminJackpotWins(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	wins, err := svc.Jackpots.Wins(c.UserContext(), id, page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, wins)
}
