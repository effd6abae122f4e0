package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/prodrank/cache"
	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/engine"
	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
)

// Extractors hands out an extractor per viewport. The configured viewport
// is served by a shared, prebuilt extractor.
type Extractors struct {
	base  rules.Options
	deflt *rules.Extractor
}

// NewExtractors builds the default extractor from base.
func NewExtractors(base rules.Options) (*Extractors, error) {
	x, err := rules.New(base)
	if err != nil {
		return nil, err
	}
	return &Extractors{base: base, deflt: x}, nil
}

// Default returns the extractor for the configured viewport.
func (e *Extractors) Default() *rules.Extractor { return e.deflt }

// For returns an extractor for vp, or the default when vp is nil or
// matches it.
func (e *Extractors) For(vp *models.Viewport) (*rules.Extractor, error) {
	if vp == nil {
		return e.deflt, nil
	}
	v := dom.Viewport{Width: vp.Width, Height: vp.Height}
	if v == e.deflt.Viewport() {
		return e.deflt, nil
	}
	opts := e.base
	opts.Viewport = v
	return rules.New(opts)
}

// Extract returns a handler for POST /api/v1/extract.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Parse markup and geometry into a page; a geometry table that does
//     not cover the document exactly is rejected with 422.
//  3. Run the requested rulesets and fill the product.
func Extract(xs *Extractors, cc *cache.Cache[*models.ExtractResponse]) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewExtractError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()

		cacheKey := ""
		if cc != nil && req.MaxAge > 0 {
			cacheKey = extractCacheKey(&req)
			if cached, hit := cc.GetWithin(cacheKey, time.Duration(req.MaxAge)*time.Millisecond); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		x, err := xs.For(req.Viewport)
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 2. Build page ───────────────────────────────────────────
		parseStart := time.Now()
		page, err := buildPage(&req)
		parseMs := time.Since(parseStart).Milliseconds()
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 3. Score ────────────────────────────────────────────────
		scoreStart := time.Now()
		resp, err := extract(x, page, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		resp.Timing = models.TimingInfo{
			TotalMs:   time.Since(totalStart).Milliseconds(),
			ParseMs:   parseMs,
			ScoringMs: time.Since(scoreStart).Milliseconds(),
		}

		// ── 4. Cache store ──────────────────────────────────────────
		if cacheKey != "" {
			stored := *resp
			cc.Set(cacheKey, &stored)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

func buildPage(req *models.ExtractRequest) (*dom.Page, error) {
	doc, err := dom.ParseString(req.HTML)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeInvalidInput, "unparseable html", err)
	}
	var geo dom.GeometryTable
	if err := json.Unmarshal(req.Geometry, &geo); err != nil {
		return nil, models.NewExtractError(models.ErrCodeInvalidInput, "invalid geometry table", err)
	}
	return dom.NewPage(doc, geo)
}

func extract(x *rules.Extractor, page *dom.Page, req *models.ExtractRequest) (*models.ExtractResponse, error) {
	resp := &models.ExtractResponse{
		Success:  true,
		Product:  &models.Product{},
		Scores:   make(map[models.Feature]float64),
		Elements: page.Document.Len(),
	}
	ctx := x.Context(page)
	for _, name := range req.Features {
		f, err := models.ParseFeature(name)
		if err != nil {
			return nil, err
		}
		rs := x.Ruleset(f)
		cands, err := rs.Score(page, ctx)
		if err != nil {
			return nil, err
		}

		if best := engine.SelectMax(cands); best != nil {
			resp.Product.Set(f, rules.Value(f, best))
			resp.Scores[f] = best.Score
		} else {
			resp.Misses = append(resp.Misses, f)
		}

		if req.Top > 0 {
			if resp.Candidates == nil {
				resp.Candidates = make(map[models.Feature][]models.CandidateInfo)
			}
			for _, cand := range engine.Ranked(cands, req.Top) {
				resp.Candidates[f] = append(resp.Candidates[f], models.CandidateInfo{
					Index: cand.Element.Index(),
					Tag:   cand.Element.Tag(),
					Value: rules.Value(f, cand),
					Score: cand.Score,
				})
			}
		}
	}
	return resp, nil
}

func extractCacheKey(req *models.ExtractRequest) string {
	vp := ""
	if req.Viewport != nil {
		vp = strconv.FormatFloat(req.Viewport.Width, 'g', -1, 64) + "x" +
			strconv.FormatFloat(req.Viewport.Height, 'g', -1, 64)
	}
	return cache.Key(req.HTML, string(req.Geometry), vp, strings.Join(req.Features, ","), strconv.Itoa(req.Top))
}

// respondError maps an ExtractError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error) {
	var extractErr *models.ExtractError
	if !errors.As(err, &extractErr) {
		extractErr = models.NewExtractError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(extractErr), models.ExtractResponse{
		Success: false,
		Error:   extractErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ExtractError) int {
	switch e.Code {
	case models.ErrCodeFixtureIntegrity, models.ErrCodeCanonicalization:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
