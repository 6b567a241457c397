package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/service"
)

type registerSiteReq struct {
	Name    string `json:"name" binding:"required"`
	Kind    string `json:"kind" binding:"required"`
	Address string `json:"address"`
}

func registerSiteHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerSiteReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		site, err := svc.Register(c.Request.Context(), service.RegisterSiteInput{
			Name:    req.Name,
			Kind:    model.SiteKind(req.Kind),
			Address: req.Address,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toSiteResp(site))
	}
}

func listSitesHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sites, err := svc.List(c.Request.Context(), model.SiteKind(c.Query("kind")))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]siteResp, 0, len(sites))
		for i := range sites {
			out = append(out, toSiteResp(&sites[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func getSiteHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		site, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toSiteResp(site))
	}
}

type updateSiteReq struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Status  *string `json:"status"`
}

func updateSiteHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req updateSiteReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in := service.UpdateSiteInput{Name: req.Name, Address: req.Address}
		if req.Status != nil {
			st := model.LifecycleStatus(*req.Status)
			in.Status = &st
		}
		site, err := svc.Update(c.Request.Context(), id, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toSiteResp(site))
	}
}

func deactivateSiteHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		site, err := svc.Deactivate(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toSiteResp(site))
	}
}

type registerCounterpartReq struct {
	Name           string `json:"name" binding:"required"`
	BusinessNumber string `json:"business_number"`
	CeoName        string `json:"ceo_name"`
	Address        string `json:"address"`
}

func registerCounterpartHandler(svc *service.CounterpartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerCounterpartReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cp, err := svc.Register(c.Request.Context(), service.RegisterCounterpartInput{
			Name:           req.Name,
			BusinessNumber: req.BusinessNumber,
			CeoName:        req.CeoName,
			Address:        req.Address,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toCounterpartResp(cp))
	}
}

func listCounterpartsHandler(svc *service.CounterpartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cps, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]counterpartResp, 0, len(cps))
		for i := range cps {
			out = append(out, toCounterpartResp(&cps[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func getCounterpartHandler(svc *service.CounterpartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		cp, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCounterpartResp(cp))
	}
}

type updateCounterpartReq struct {
	Name           *string `json:"name"`
	BusinessNumber *string `json:"business_number"`
	CeoName        *string `json:"ceo_name"`
	Address        *string `json:"address"`
	Status         *string `json:"status"`
}

func updateCounterpartHandler(svc *service.CounterpartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req updateCounterpartReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in := service.UpdateCounterpartInput{
			Name:           req.Name,
			BusinessNumber: req.BusinessNumber,
			CeoName:        req.CeoName,
			Address:        req.Address,
		}
		if req.Status != nil {
			st := model.LifecycleStatus(*req.Status)
			in.Status = &st
		}
		cp, err := svc.Update(c.Request.Context(), id, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCounterpartResp(cp))
	}
}

func deactivateCounterpartHandler(svc *service.CounterpartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		cp, err := svc.Deactivate(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCounterpartResp(cp))
	}
}

func siteDistancesHandler(svc *service.DistanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ds, err := svc.ListSiteDistances(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toSiteDistancesResp(ds))
	}
}

func pairDistanceHandler(svc *service.DistanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		siteID, ok := idParam(c, "id")
		if !ok {
			return
		}
		counterpartID, ok := idParam(c, "counterpartId")
		if !ok {
			return
		}
		km, err := svc.SiteCounterpartDistance(c.Request.Context(), siteID, counterpartID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"site_id":        siteID,
			"counterpart_id": counterpartID,
			"distance_km":    km.StringFixed(2),
		})
	}
}

func recalculateHandler(svc *service.DistanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svc.RecalculateAll(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}
